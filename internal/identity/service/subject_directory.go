package service

import (
	"context"

	"modelplane/authcore/internal/identity/repository"
)

// SubjectDirectory adapts the user repository to the rotation engine's
// subject re-check, so a suspended account cannot keep rotating a session
// opened before suspension.
type SubjectDirectory struct {
	users repository.UserRepo
}

// NewSubjectDirectory returns a SubjectDirectory over users.
func NewSubjectDirectory(users repository.UserRepo) *SubjectDirectory {
	return &SubjectDirectory{users: users}
}

// ResolveSubject reports the account's current role and whether it is
// active. An unknown subject resolves as inactive.
func (d *SubjectDirectory) ResolveSubject(ctx context.Context, subjectID string) (string, bool, error) {
	user, err := d.users.GetByID(ctx, subjectID)
	if err != nil {
		return "", false, err
	}
	if user == nil {
		return "", false, nil
	}
	return user.Role, user.Active(), nil
}
