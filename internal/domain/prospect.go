package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ConnectionStatus tracks the LinkedIn relationship with a prospect.
type ConnectionStatus string

const (
	ConnectionNotConnected ConnectionStatus = "not_connected"
	ConnectionPending      ConnectionStatus = "pending"
	ConnectionConnected    ConnectionStatus = "connected"
	ConnectionWithdrawn    ConnectionStatus = "withdrawn"
)

// Prospect is a LinkedIn profile record owned by a user, independent of
// any campaign.
type Prospect struct {
	ID               uuid.UUID
	OwnerID          uuid.UUID
	LinkedInID       string
	FullName         string
	Headline         string
	ProfileURL       string
	ProfileImageURL  string
	ConnectionStatus ConnectionStatus
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// FirstName derives the first token of the prospect's full name.
func (p *Prospect) FirstName() string {
	name := strings.TrimSpace(p.FullName)
	if name == "" {
		return ""
	}
	if idx := strings.IndexByte(name, ' '); idx > 0 {
		return name[:idx]
	}
	return name
}

// ProspectStats aggregates prospect counts per connection status.
type ProspectStats struct {
	Total        int
	NotConnected int
	Pending      int
	Connected    int
	Withdrawn    int
}
