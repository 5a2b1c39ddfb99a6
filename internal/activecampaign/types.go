package activecampaign

import "fmt"

// RelTypeDeal is the relation type of notes attached to deals.
const RelTypeDeal = "Deal"

// Deal is the slice of the API's deal object the engine needs: the id.
type Deal struct {
	ID string `json:"id"`
}

// Note is a note attached to a CRM object. UserID identifies the author,
// RelType/RelID the object the note hangs off.
type Note struct {
	ID      string `json:"id"`
	UserID  string `json:"userid"`
	RelType string `json:"reltype"`
	RelID   string `json:"relid"`
}

// dealsPage and notesPage mirror the paginated listing envelopes.
type dealsPage struct {
	Deals []Deal `json:"deals"`
}

type notesPage struct {
	Notes []Note `json:"notes"`
}

// StatusError reports a non-success HTTP status on a listing call.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.Code)
}
