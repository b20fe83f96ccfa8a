package domain

// ActionKind identifies one of the fixed browser action types.
type ActionKind string

const (
	ActionVisit   ActionKind = "visit"
	ActionInvite  ActionKind = "invite"
	ActionMessage ActionKind = "message"
	ActionFollow  ActionKind = "follow"
)

// ActionSpec describes the fixed capabilities of an action kind.
type ActionSpec struct {
	Kind               ActionKind
	Name               string
	Description        string
	Icon               string
	RequiresTemplate   bool
	RequiresConnection bool
	TemplateType       TemplateType
}

// Catalog is the closed set of supported actions, in display order.
var Catalog = []ActionSpec{
	{
		Kind:        ActionVisit,
		Name:        "Visit Profile",
		Description: "Visit the prospect's LinkedIn profile to increase visibility",
		Icon:        "eye",
	},
	{
		Kind:             ActionInvite,
		Name:             "Send Connection Request",
		Description:      "Send a connection request with an optional personalized message",
		Icon:             "user-plus",
		RequiresTemplate: true,
		TemplateType:     TemplateTypeInvitation,
	},
	{
		Kind:               ActionMessage,
		Name:               "Send Message",
		Description:        "Send a direct message to an existing connection",
		Icon:               "message-square",
		RequiresTemplate:   true,
		RequiresConnection: true,
		TemplateType:       TemplateTypeMessage,
	},
	{
		Kind:        ActionFollow,
		Name:        "Follow Profile",
		Description: "Follow the prospect's LinkedIn profile",
		Icon:        "user-check",
	},
}

// ActionByKind looks up an action spec from the catalog.
func ActionByKind(kind ActionKind) (ActionSpec, bool) {
	for _, spec := range Catalog {
		if spec.Kind == kind {
			return spec, true
		}
	}
	return ActionSpec{}, false
}
