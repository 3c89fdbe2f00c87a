package controller

import "github.com/csdesk/console-cs/internal/api"

// Permission helpers used by views to hide actions the backend would
// reject anyway. The backend remains the authority; these only keep the
// UI from offering dead buttons.

// CanDeleteComment reports whether user may delete the comment: its
// author, or any admin.
func CanDeleteComment(user *api.User, c api.Comment) bool {
	if user == nil {
		return false
	}
	return user.IsAdmin() || user.ID == c.AuthorID
}

// CanDeleteMemo reports whether user may delete the memo: its author, or
// any admin.
func CanDeleteMemo(user *api.User, m api.Memo) bool {
	if user == nil {
		return false
	}
	return user.IsAdmin() || user.ID == m.AuthorID
}
