package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/acme/linkedin-outreach/pkg/errors"
)

// TemplateType distinguishes invitation notes from direct messages.
type TemplateType string

const (
	TemplateTypeInvitation TemplateType = "invitation"
	TemplateTypeMessage    TemplateType = "message"
)

// LinkedIn-imposed content limits, enforced at write time.
const (
	InvitationMaxLength = 300
	MessageMaxLength    = 5000
)

// MessageTemplate is a reusable outreach message owned by a user.
type MessageTemplate struct {
	ID        uuid.UUID
	OwnerID   uuid.UUID
	Name      string
	Type      TemplateType
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks the template name, type and content length.
func (t *MessageTemplate) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("%w: template name is required", apperrors.ErrValidation)
	}
	if t.Content == "" {
		return fmt.Errorf("%w: template content is required", apperrors.ErrValidation)
	}
	switch t.Type {
	case TemplateTypeInvitation:
		if len([]rune(t.Content)) > InvitationMaxLength {
			return fmt.Errorf("%w: invitation content exceeds %d characters", apperrors.ErrValidation, InvitationMaxLength)
		}
	case TemplateTypeMessage:
		if len([]rune(t.Content)) > MessageMaxLength {
			return fmt.Errorf("%w: message content exceeds %d characters", apperrors.ErrValidation, MessageMaxLength)
		}
	default:
		return fmt.Errorf("%w: unknown template type %q", apperrors.ErrValidation, t.Type)
	}
	return nil
}

// Render substitutes prospect placeholders into the template content.
func (t *MessageTemplate) Render(prospect *Prospect) string {
	if prospect == nil {
		return t.Content
	}
	r := strings.NewReplacer(
		"{first_name}", prospect.FirstName(),
		"{full_name}", prospect.FullName,
	)
	return r.Replace(t.Content)
}
