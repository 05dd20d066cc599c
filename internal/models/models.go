package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	ResolutionStructured = "structured"
	ResolutionNameMatch  = "name_match"
	ResolutionUnresolved = "unresolved"
)

type Ticket struct {
	GUID        string    `json:"guid"`
	Gender      string    `json:"gender"`
	BirthDate   string    `json:"birth_date"`
	Description string    `json:"description"`
	Attachments string    `json:"attachments"`
	Segment     string    `json:"segment"`
	Country     string    `json:"country"`
	Region      string    `json:"region"`
	City        string    `json:"city"`
	Street      string    `json:"street"`
	House       string    `json:"house"`
	CreatedAt   time.Time `json:"created_at"`
}

type Manager struct {
	ID           string    `json:"id"`
	FullName     string    `json:"full_name"`
	Position     string    `json:"position"`
	Office       string    `json:"office"`
	Skills       []string  `json:"skills"`
	BaselineLoad int       `json:"baseline_load"`
	CurrentLoad  int       `json:"current_load"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type BusinessUnit struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	City    string `json:"city"`
}

// ClassificationResult is the reconciled classifier output for one ticket.
// It is replaced wholesale on every reconciliation of the same ticket.
type ClassificationResult struct {
	TicketGUID        string  `json:"ticket_guid"`
	Segment           string  `json:"segment"`
	Type              string  `json:"type"`
	Sentiment         string  `json:"sentiment"`
	Language          string  `json:"language"`
	Priority          string  `json:"priority"`
	PriorityScore     *int    `json:"priority_score"`
	Recommendation    string  `json:"recommendation"`
	Attachments       string  `json:"attachments"`
	ManagerName       string  `json:"manager_name"`
	ManagerPosition   string  `json:"manager_position"`
	AssignedOffice    string  `json:"assigned_office"`
	Escalated         bool    `json:"escalated"`
	CityOriginal      string  `json:"city_original"`
	RoutingReason     string  `json:"routing_reason"`
	Source            string  `json:"source"`
	GeoMethod         string  `json:"geo_method"`
	AssignedManagerID *string `json:"assigned_manager_id"`
	Resolution        string  `json:"resolution"`
}

// ResultRow is one raw row emitted by the upstream classifier.
type ResultRow struct {
	GUID            string     `json:"guid"`
	Segment         string     `json:"segment"`
	Type            string     `json:"type"`
	Sentiment       string     `json:"sentiment"`
	Language        string     `json:"language"`
	Priority        FlexString `json:"priority"`
	Recommendation  string     `json:"recommendation"`
	Attachments     string     `json:"attachments"`
	ManagerID       string     `json:"manager_id"`
	ManagerName     string     `json:"manager_name"`
	ManagerPosition string     `json:"manager_position"`
	AssignedOffice  string     `json:"assigned_office"`
	Escalated       FlexString `json:"escalated"`
	CityOriginal    string     `json:"city_original"`
	RoutingReason   string     `json:"routing_reason"`
	Source          string     `json:"source"`
	GeoMethod       string     `json:"geo_method"`
}

// ResultView joins a result with its ticket and the resolved manager's name.
type ResultView struct {
	Ticket          Ticket               `json:"ticket"`
	Result          ClassificationResult `json:"result"`
	ManagerFullName string               `json:"manager_full_name"`
}

// TicketDetails is a ticket with its classification, if one was reconciled.
type TicketDetails struct {
	Ticket          Ticket                `json:"ticket"`
	Result          *ClassificationResult `json:"result"`
	ManagerFullName string                `json:"manager_full_name,omitempty"`
}

type Run struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at"`
	Status     string          `json:"status"`
	Summary    json.RawMessage `json:"summary"`
}

// FlexString accepts a JSON string, number or boolean and keeps its textual form.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*f = FlexString(v)
		return nil
	}
	if s == "true" || s == "false" {
		*f = FlexString(s)
		return nil
	}
	if _, err := strconv.ParseFloat(s, 64); err != nil {
		return fmt.Errorf("flex string: unsupported value %s", s)
	}
	*f = FlexString(s)
	return nil
}

func (f FlexString) String() string {
	return string(f)
}
