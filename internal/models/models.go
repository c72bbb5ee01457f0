// Package models contains the data models and DTOs for the finearr request service.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Category identifies which download manager fulfills a request.
type Category string

// Category constants define the two request categories.
const (
	CategoryMovie Category = "movie"
	CategoryShow  Category = "show"
)

// ParseCategory maps a raw category string to a Category.
func ParseCategory(raw string) (Category, bool) {
	switch Category(raw) {
	case CategoryMovie:
		return CategoryMovie, true
	case CategoryShow:
		return CategoryShow, true
	default:
		return "", false
	}
}

// Outcome is the result of a submit.
type Outcome string

// Outcome constants.
const (
	OutcomeApproved Outcome = "approved"
	OutcomePending  Outcome = "pending"
)

// ApprovedByAuto marks approvals granted by policy rather than by an administrator.
const ApprovedByAuto = "auto"

// MaxApprovals caps the approvals history.
const MaxApprovals = 20

// FlexString decodes either a JSON string or a JSON number into a string.
// Catalog years and provider pin ids arrive in both shapes.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number: %w", err)
	}
	*f = FlexString(n.String())
	return nil
}

// MediaItem is a catalog entry as supplied by the client.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type MediaItem struct {
	ID     FlexString `json:"id"`
	Title  string     `json:"title"`
	Year   FlexString `json:"year,omitempty"`
	Poster string     `json:"poster,omitempty"`
	Plot   string     `json:"plot,omitempty"`
	Actors []string   `json:"actors,omitempty"`
	IMDb   string     `json:"imdb,omitempty"`
	TVDB   string     `json:"tvdb,omitempty"`
}

// RequestEntry is a MediaItem attributed to the user who asked for it.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type RequestEntry struct {
	MediaItem
	Category    Category  `json:"category"`
	RequestedBy string    `json:"requestedBy"`
	RequestedAt time.Time `json:"requestedAt"`
}

// ApprovalEntry is an immutable snapshot of an approved request.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type ApprovalEntry struct {
	RequestEntry
	ApprovedAt time.Time `json:"approvedAt"`
	ApprovedBy string    `json:"approvedBy"`
}

// BlacklistEntry is a snapshot of a denied request.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type BlacklistEntry struct {
	RequestEntry
	DeniedAt time.Time `json:"deniedAt"`
	DeniedBy string    `json:"deniedBy,omitempty"`
}

// PendingRequests is the requests document.
type PendingRequests struct {
	Movies []RequestEntry `json:"movies"`
	Shows  []RequestEntry `json:"shows"`
}

// List returns a pointer to the category's list.
func (p *PendingRequests) List(c Category) *[]RequestEntry {
	if c == CategoryMovie {
		return &p.Movies
	}
	return &p.Shows
}

// Blacklist is the blacklist document.
type Blacklist struct {
	Movies []BlacklistEntry `json:"movies"`
	Shows  []BlacklistEntry `json:"shows"`
}

// List returns a pointer to the category's list.
func (b *Blacklist) List(c Category) *[]BlacklistEntry {
	if c == CategoryMovie {
		return &b.Movies
	}
	return &b.Shows
}

// LedgerSnapshot is the combined view returned by GET /api/requests.
type LedgerSnapshot struct {
	Requests  PendingRequests `json:"requests"`
	Approvals []ApprovalEntry `json:"approvals"`
	Blacklist Blacklist       `json:"blacklist"`
}

// Policy holds the three permission flags.
type Policy struct {
	CanRequestMovies bool `json:"canRequestMovies"`
	CanRequestShows  bool `json:"canRequestShows"`
	AutoApprove      bool `json:"autoApprove"`
}

// Allows reports whether the policy permits requests in the category.
func (p Policy) Allows(c Category) bool {
	if c == CategoryMovie {
		return p.CanRequestMovies
	}
	return p.CanRequestShows
}

// DefaultPolicy is used when no permissions document exists.
func DefaultPolicy() Policy {
	return Policy{CanRequestMovies: true, CanRequestShows: true}
}

// PolicyOverride is a per-user override. Nil fields inherit the defaults.
type PolicyOverride struct {
	CanRequestMovies *bool `json:"canRequestMovies,omitempty"`
	CanRequestShows  *bool `json:"canRequestShows,omitempty"`
	AutoApprove      *bool `json:"autoApprove,omitempty"`
}

// Apply resolves the override against the defaults.
func (o PolicyOverride) Apply(defaults Policy) Policy {
	out := defaults
	if o.CanRequestMovies != nil {
		out.CanRequestMovies = *o.CanRequestMovies
	}
	if o.CanRequestShows != nil {
		out.CanRequestShows = *o.CanRequestShows
	}
	if o.AutoApprove != nil {
		out.AutoApprove = *o.AutoApprove
	}
	return out
}

// PermissionPolicy is the permissions document.
type PermissionPolicy struct {
	Defaults Policy                    `json:"defaults"`
	Users    map[string]PolicyOverride `json:"users"`
}

// DefaultPermissionPolicy returns the document used when none is stored.
func DefaultPermissionPolicy() PermissionPolicy {
	return PermissionPolicy{Defaults: DefaultPolicy(), Users: map[string]PolicyOverride{}}
}

// PolicyPatch is the body of PUT /api/permissions. A nil entry in Users
// removes that user's override.
type PolicyPatch struct {
	Defaults *PolicyOverride            `json:"defaults"`
	Users    map[string]*PolicyOverride `json:"users"`
}

// User is an identity established through Plex.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type User struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	PlexToken    string `json:"plexToken"`
	SessionToken string `json:"sessionToken"`
	Background   string `json:"background"`
}

// UserView is the public projection of a User.
type UserView struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	Background string `json:"background"`
}

// View strips credentials from the user.
func (u User) View() UserView {
	return UserView{ID: u.ID, Username: u.Username, Background: u.Background}
}

// AdminAccount is a stored administrator.
type AdminAccount struct {
	Username     string `json:"username"`
	PasswordHash string `json:"passwordHash"`
}

// AdminView is the public projection of an AdminAccount.
type AdminView struct {
	Username string `json:"username"`
}

// PinResponse is returned when a Plex PIN is created.
type PinResponse struct {
	ID        string `json:"id"`
	Code      string `json:"code"`
	AuthURL   string `json:"authUrl"`
	ExpiresIn int    `json:"expiresIn"`
}

// PinStatus is returned when a Plex PIN is checked. A nil AuthToken means
// the user has not completed the handshake.
type PinStatus struct {
	AuthToken *string `json:"authToken"`
	ExpiresIn int     `json:"expiresIn"`
}

// SubmitRequestDTO is the body of POST /api/requests. Type is accepted as an
// alias of Category for older clients.
type SubmitRequestDTO struct {
	Category string     `json:"category"`
	Type     string     `json:"type"`
	Item     *MediaItem `json:"item"`
	Username string     `json:"username"`
}

// SubmitResponseDTO is returned by POST /api/requests.
type SubmitResponseDTO struct {
	Status Outcome      `json:"status"`
	Entry  RequestEntry `json:"entry"`
}

// PlexLoginDTO is the body of POST /api/auth/plex/login.
type PlexLoginDTO struct {
	PlexToken string `json:"plexToken" binding:"required"`
}

// PlexAutoLoginDTO is the body of POST /api/auth/plex/auto.
type PlexAutoLoginDTO struct {
	SessionToken string `json:"sessionToken" binding:"required"`
}

// AdminLoginDTO is the body of POST /api/auth/admin/login.
type AdminLoginDTO struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AdminAccountDTO is the body of the admin account endpoints.
type AdminAccountDTO struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// BackgroundDTO is the body of POST /api/users/background.
type BackgroundDTO struct {
	Username   string `json:"username" binding:"required"`
	Background string `json:"background"`
}

// ErrorResponse represents an error response.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type ErrorResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Status    int       `json:"status"`
	Kind      string    `json:"kind"`
	Error     string    `json:"error"`
	Path      string    `json:"path"`
}
