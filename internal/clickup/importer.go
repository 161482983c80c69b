package clickup

import (
	"context"
	"fmt"
	"log"
	"strings"

	"quarterly/api/internal/store"
)

// Field names as they appear on the ClickUp list view.
const (
	fieldBrandName    = "Brand's Name"
	fieldClientStatus = "⭐ Client Status"
	fieldServiceType  = "⭐ ServiceType"
	fieldAsinsFAM     = "Total Asins FAM"
	fieldAsinsPPC     = "Total Asins PPC"
)

// clientStatusMap translates the Client Status dropdown indexes.
var clientStatusMap = map[int]string{
	0: "Churned",
	1: "Pending",
	2: "Onboarding",
	3: "Live",
	4: "Paused",
	5: "Ending Soon",
}

// serviceTypeMap is the fallback when the dropdown option list is not
// present on the task payload.
var serviceTypeMap = map[int]string{
	1: "FAM",
	2: "PPC",
	3: "Consulting",
}

type rosterStore interface {
	UpsertRosterEntry(ctx context.Context, item store.RosterEntry) error
}

type Importer struct {
	client *Client
	store  rosterStore
}

func NewImporter(client *Client, rosterStore rosterStore) *Importer {
	return &Importer{client: client, store: rosterStore}
}

type Summary struct {
	Imported    int
	StatusCount map[string]int
}

// Run fetches every task from the view and upserts one roster row per
// task id. Any fetch or store failure aborts the run; rows already
// upserted stay committed, and re-running converges to the same state.
func (i *Importer) Run(ctx context.Context, viewID string) (Summary, error) {
	log.Printf("[Import] Fetching clients from ClickUp view %s", viewID)
	tasks, err := i.client.FetchViewTasks(ctx, viewID)
	if err != nil {
		return Summary{}, fmt.Errorf("fetch clients: %w", err)
	}
	log.Printf("[Import] Total clients fetched: %d", len(tasks))

	summary := Summary{StatusCount: make(map[string]int)}
	for _, task := range tasks {
		entry := mapTask(task)
		if err := i.store.UpsertRosterEntry(ctx, entry); err != nil {
			return summary, fmt.Errorf("upsert %s: %w", entry.ClientName, err)
		}
		log.Printf("[Import] %s (%s)", entry.ClientName, entry.Status)
		summary.Imported++
		summary.StatusCount[entry.Status]++
	}

	log.Printf("[Import] Imported %d clients", summary.Imported)
	for status, count := range summary.StatusCount {
		log.Printf("[Import]   %s: %d", status, count)
	}
	return summary, nil
}

// mapTask converts one ClickUp task to a roster entry. Owner assignments
// have no mapping yet and stay NULL.
func mapTask(task Task) store.RosterEntry {
	brandName := fieldString(task.FieldValue(fieldBrandName))
	if brandName == "" {
		brandName = task.Name
	}

	return store.RosterEntry{
		ClickUpTaskID: task.ID,
		ClickUpURL:    task.URL,
		ClientName:    task.Name,
		BrandName:     brandName,
		Company:       brandName,
		Status:        NormalizeStatus(clientStatus(task)),
		ServiceType:   serviceType(task),
		Defcon:        3,
		TotalAsinsFAM: optionalString(task.FieldValue(fieldAsinsFAM)),
		TotalAsinsPPC: optionalString(task.FieldValue(fieldAsinsPPC)),
	}
}

func clientStatus(task Task) string {
	value := task.FieldValue(fieldClientStatus)
	if value == nil {
		return "Unknown"
	}
	index, ok := fieldInt(value)
	if !ok {
		return "Unknown"
	}
	if name, ok := clientStatusMap[index]; ok {
		return name
	}
	return "Unknown"
}

func serviceType(task Task) string {
	if name := task.FieldOptionName(fieldServiceType); name != "" {
		return name
	}
	index, ok := fieldInt(task.FieldValue(fieldServiceType))
	if !ok {
		return "Unknown"
	}
	if name, ok := serviceTypeMap[index]; ok {
		return name
	}
	return "Unknown"
}

// NormalizeStatus lowercases a status name and joins words with
// underscores ("Ending Soon" -> "ending_soon").
func NormalizeStatus(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "_")
}

func optionalString(value any) *string {
	if value == nil {
		return nil
	}
	rendered := fieldString(value)
	if rendered == "" {
		return nil
	}
	return &rendered
}
