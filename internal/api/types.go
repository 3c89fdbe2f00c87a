package api

import (
	"sort"
	"time"
)

// Role identifies what a user is allowed to do. The backend enforces it;
// the client only uses it to hide affordances.
type Role string

const (
	RoleCS       Role = "CS"
	RoleEngineer Role = "ENGINEER"
	RoleAdmin    Role = "ADMIN"
)

// CaseStatus is the lifecycle state of a support case.
type CaseStatus string

const (
	CaseOpen       CaseStatus = "OPEN"
	CaseInProgress CaseStatus = "IN_PROGRESS"
	CaseDone       CaseStatus = "DONE"
	CaseCancel     CaseStatus = "CANCEL"
)

// Priority of a support case.
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// QuoteStatus is the two-state lifecycle of a quote request.
type QuoteStatus string

const (
	QuoteOpen QuoteStatus = "OPEN"
	QuoteDone QuoteStatus = "DONE"
)

// NotificationType categorizes notifications delivered to a user.
type NotificationType string

const (
	NotifyAssignee NotificationType = "ASSIGNEE"
	NotifyReminder NotificationType = "REMINDER"
	NotifyComment  NotificationType = "COMMENT"
)

// User is the profile returned by /auth/me and the admin user endpoints.
type User struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// IsAdmin reports whether the user carries the ADMIN role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Case is a customer-support ticket.
type Case struct {
	ID           int        `json:"id"`
	Title        string     `json:"title"`
	Content      string     `json:"content"`
	Status       CaseStatus `json:"status"`
	Priority     Priority   `json:"priority"`
	Requester    string     `json:"requester"`
	AssigneeIDs  []int      `json:"assignee_ids"`
	ProductID    *int       `json:"product_id,omitempty"`
	LicenseID    *int       `json:"license_id,omitempty"`
	Tags         []string   `json:"tags"`
	Organization string     `json:"organization,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// CaseCreate is the payload for creating a case.
type CaseCreate struct {
	Title        string   `json:"title"`
	Content      string   `json:"content"`
	Requester    string   `json:"requester"`
	Priority     Priority `json:"priority"`
	AssigneeIDs  []int    `json:"assignee_ids,omitempty"`
	ProductID    *int     `json:"product_id,omitempty"`
	LicenseID    *int     `json:"license_id,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	Organization string   `json:"organization,omitempty"`
}

// CaseUpdate is the payload for a full case update (PUT). Nil fields are
// omitted so the backend keeps their current values.
type CaseUpdate struct {
	Title        *string   `json:"title,omitempty"`
	Content      *string   `json:"content,omitempty"`
	Requester    *string   `json:"requester,omitempty"`
	Priority     *Priority `json:"priority,omitempty"`
	AssigneeIDs  []int     `json:"assignee_ids,omitempty"`
	ProductID    *int      `json:"product_id,omitempty"`
	LicenseID    *int      `json:"license_id,omitempty"`
	Tags         []string  `json:"tags,omitempty"`
	Organization *string   `json:"organization,omitempty"`
}

// SimilarCase is a slim case projection returned by the similarity search.
type SimilarCase struct {
	ID          int        `json:"id"`
	Title       string     `json:"title"`
	Status      CaseStatus `json:"status"`
	AssigneeIDs []int      `json:"assignee_ids"`
	Score       float64    `json:"score,omitempty"`
}

// Comment is a threaded annotation on a case or quote request. The backend
// returns a flat list; BuildCommentTree assembles the reply structure.
type Comment struct {
	ID         int       `json:"id"`
	ParentID   *int      `json:"parent_id,omitempty"`
	AuthorID   int       `json:"author_id"`
	AuthorName string    `json:"author_name,omitempty"`
	Content    string    `json:"content"`
	IsInternal bool      `json:"is_internal"`
	CreatedAt  time.Time `json:"created_at"`
	Replies    []Comment `json:"replies,omitempty"`
}

// CommentCreate is the payload for creating a comment or reply.
type CommentCreate struct {
	Content    string `json:"content"`
	ParentID   *int   `json:"parent_id,omitempty"`
	IsInternal bool   `json:"is_internal"`
}

// ChecklistItem is a boolean-state task attached to a case.
type ChecklistItem struct {
	ID      int    `json:"id"`
	CaseID  int    `json:"case_id"`
	Content string `json:"content"`
	IsDone  bool   `json:"is_done"`
}

// Product is a catalog entry.
type Product struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedBy   *int      `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// License belongs to exactly one product.
type License struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	ProductID   int       `json:"product_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// Memo is an author-attributed free-text note on a product or license.
type Memo struct {
	ID         int       `json:"id"`
	ProductID  int       `json:"product_id,omitempty"`
	LicenseID  int       `json:"license_id,omitempty"`
	AuthorID   int       `json:"author_id"`
	AuthorName string    `json:"author_name,omitempty"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// QuoteRequest is an inbound sales-quote inquiry.
type QuoteRequest struct {
	ID               int         `json:"id"`
	QuoteRequestText string      `json:"quote_request_text"`
	Status           QuoteStatus `json:"status"`
	AssigneeIDs      []int       `json:"assignee_ids"`
	Organization     string      `json:"organization,omitempty"`
	DeliveryDate     *time.Time  `json:"delivery_date,omitempty"`
	FailedProducts   []string    `json:"failed_products,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
}

// Notification is a server-generated message for the current user.
type Notification struct {
	ID        int              `json:"id"`
	UserID    int              `json:"user_id"`
	CaseID    *int             `json:"case_id,omitempty"`
	Message   string           `json:"message"`
	IsRead    bool             `json:"is_read"`
	Type      NotificationType `json:"type"`
	CreatedAt time.Time        `json:"created_at"`
}

// Page is the standard paginated list envelope used by every list endpoint.
type Page[T any] struct {
	Items      []T `json:"items"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalPages int `json:"total_pages"`
}

// TokenResponse is returned by /auth/login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// StatByAssignee is one row of the per-assignee statistics report.
type StatByAssignee struct {
	AssigneeID      int    `json:"assignee_id"`
	AssigneeName    string `json:"assignee_name"`
	OpenCount       int    `json:"open_count"`
	InProgressCount int    `json:"in_progress_count"`
	DoneCount       int    `json:"done_count"`
}

// StatByStatus is one row of the per-status statistics report.
type StatByStatus struct {
	Status CaseStatus `json:"status"`
	Count  int        `json:"count"`
}

// StatByTime is the average-resolution-time report.
type StatByTime struct {
	AvgHours       *float64 `json:"avg_hours"`
	TotalCompleted int      `json:"total_completed"`
}

// MyProgress is the current user's case counts by status.
type MyProgress struct {
	OpenCount       int `json:"open_count"`
	InProgressCount int `json:"in_progress_count"`
	DoneCount       int `json:"done_count"`
	CancelCount     int `json:"cancel_count"`
}

// PushSubscription is the device registration sent to /push/subscribe.
type PushSubscription struct {
	Endpoint string `json:"endpoint"`
	P256DH   string `json:"p256dh"`
	Auth     string `json:"auth"`
}

// BuildCommentTree assembles a flat comment list into a reply tree ordered
// by creation time. Comments whose parent is missing from the list are kept
// as roots rather than dropped.
func BuildCommentTree(flat []Comment) []Comment {
	byID := make(map[int]bool, len(flat))
	for _, c := range flat {
		byID[c.ID] = true
	}

	children := make(map[int][]Comment)
	var roots []Comment
	for _, c := range flat {
		c.Replies = nil
		if c.ParentID != nil && byID[*c.ParentID] {
			children[*c.ParentID] = append(children[*c.ParentID], c)
		} else {
			roots = append(roots, c)
		}
	}

	var assemble func(c Comment) Comment
	assemble = func(c Comment) Comment {
		kids := children[c.ID]
		sortCommentsByTime(kids)
		for _, kid := range kids {
			c.Replies = append(c.Replies, assemble(kid))
		}
		return c
	}

	sortCommentsByTime(roots)
	out := make([]Comment, 0, len(roots))
	for _, root := range roots {
		out = append(out, assemble(root))
	}
	return out
}

func sortCommentsByTime(cs []Comment) {
	sort.SliceStable(cs, func(i, j int) bool {
		return cs[i].CreatedAt.Before(cs[j].CreatedAt)
	})
}
