package session

import (
	"fmt"

	flowdomain "github.com/railzwaylabs/plexsource/internal/flow/domain"
	plexdomain "github.com/railzwaylabs/plexsource/internal/plex/domain"
	sourcedomain "github.com/railzwaylabs/plexsource/internal/source/domain"
)

// IDGenerator returns a fresh client identifier.
type IDGenerator func() (string, error)

// Form is the editable view of a source. It is a value: edits produce a new
// Form.
type Form struct {
	PK                 string                        `json:"pk,omitempty"`
	PersistedSlug      string                        `json:"persisted_slug,omitempty"`
	Slug               string                        `json:"slug"`
	Name               string                        `json:"name"`
	Enabled            bool                          `json:"enabled"`
	ClientID           string                        `json:"client_id"`
	UserMatchingMode   sourcedomain.UserMatchingMode `json:"user_matching_mode"`
	AllowFriends       bool                          `json:"allow_friends"`
	AllowedServers     []string                      `json:"allowed_servers"`
	AuthenticationFlow string                        `json:"authentication_flow"`
	EnrollmentFlow     string                        `json:"enrollment_flow"`
}

// Persisted reports whether the form edits a stored source.
func (f Form) Persisted() bool {
	return f.PK != "" || f.PersistedSlug != ""
}

func (f Form) flow(designation flowdomain.Designation) string {
	switch designation {
	case flowdomain.DesignationAuthentication:
		return f.AuthenticationFlow
	case flowdomain.DesignationEnrollment:
		return f.EnrollmentFlow
	}
	return ""
}

// Edit is a partial update; nil fields are left unchanged.
type Edit struct {
	Slug               *string                        `json:"slug,omitempty"`
	Name               *string                        `json:"name,omitempty"`
	Enabled            *bool                          `json:"enabled,omitempty"`
	ClientID           *string                        `json:"client_id,omitempty"`
	UserMatchingMode   *sourcedomain.UserMatchingMode `json:"user_matching_mode,omitempty"`
	AllowFriends       *bool                          `json:"allow_friends,omitempty"`
	AllowedServers     *[]string                      `json:"allowed_servers,omitempty"`
	AuthenticationFlow *string                        `json:"authentication_flow,omitempty"`
	EnrollmentFlow     *string                        `json:"enrollment_flow,omitempty"`
}

// NewForm seeds a form for a source that does not exist yet. The client
// identifier is generated here and nowhere else.
func NewForm(gen IDGenerator) (Form, error) {
	clientID, err := gen()
	if err != nil {
		return Form{}, fmt.Errorf("generate client id: %w", err)
	}
	return Form{
		Enabled:        true,
		AllowFriends:   true,
		ClientID:       clientID,
		AllowedServers: []string{},
	}, nil
}

// FormFromSource seeds a form from a stored source.
func FormFromSource(src sourcedomain.Source) Form {
	return Form{
		PK:                 src.PK,
		PersistedSlug:      src.Slug,
		Slug:               src.Slug,
		Name:               src.Name,
		Enabled:            src.Enabled,
		ClientID:           src.ClientID,
		UserMatchingMode:   src.UserMatchingMode,
		AllowFriends:       src.AllowFriends,
		AllowedServers:     append([]string{}, src.AllowedServers...),
		AuthenticationFlow: src.AuthenticationFlow,
		EnrollmentFlow:     src.EnrollmentFlow,
	}
}

// Apply returns the form with e applied. The client identifier and slug of a
// stored source cannot change.
func (f Form) Apply(e Edit) (Form, error) {
	if f.Persisted() {
		if e.ClientID != nil && *e.ClientID != f.ClientID {
			return f, fmt.Errorf("%w: client_id", ErrReadOnlyField)
		}
		if e.Slug != nil && *e.Slug != f.Slug {
			return f, fmt.Errorf("%w: slug", ErrReadOnlyField)
		}
	}

	next := f
	next.AllowedServers = append([]string{}, f.AllowedServers...)
	if e.Slug != nil {
		next.Slug = *e.Slug
	}
	if e.Name != nil {
		next.Name = *e.Name
	}
	if e.Enabled != nil {
		next.Enabled = *e.Enabled
	}
	if e.ClientID != nil {
		next.ClientID = *e.ClientID
	}
	if e.UserMatchingMode != nil {
		next.UserMatchingMode = *e.UserMatchingMode
	}
	if e.AllowFriends != nil {
		next.AllowFriends = *e.AllowFriends
	}
	if e.AllowedServers != nil {
		next.AllowedServers = append([]string{}, (*e.AllowedServers)...)
	}
	if e.AuthenticationFlow != nil {
		next.AuthenticationFlow = *e.AuthenticationFlow
	}
	if e.EnrollmentFlow != nil {
		next.EnrollmentFlow = *e.EnrollmentFlow
	}
	return next, nil
}

type ResourceOption struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Selected bool   `json:"selected"`
}

// ResourceOptions marks each discovered resource selected when its
// identifier is in allowed.
func ResourceOptions(resources []plexdomain.Resource, allowed []string) []ResourceOption {
	set := make(map[string]struct{}, len(allowed))
	for _, id := range allowed {
		set[id] = struct{}{}
	}

	out := make([]ResourceOption, 0, len(resources))
	for _, r := range resources {
		_, selected := set[r.ClientIdentifier]
		out = append(out, ResourceOption{ID: r.ClientIdentifier, Name: r.Name, Selected: selected})
	}
	return out
}

// SelectedResources returns the identifiers of the selected options.
func SelectedResources(options []ResourceOption) []string {
	out := make([]string, 0, len(options))
	for _, o := range options {
		if o.Selected {
			out = append(out, o.ID)
		}
	}
	return out
}

type FlowOption struct {
	PK       string `json:"pk"`
	Label    string `json:"label"`
	Selected bool   `json:"selected"`
}

// EffectiveFlow is the flow the form shows as chosen for designation.
func EffectiveFlow(f Form, designation flowdomain.Designation, flows []flowdomain.Flow) string {
	return flowdomain.SelectDefault(flows, designation, f.flow(designation), f.Persisted())
}

// FlowOptions renders flows in catalog order with the effective choice
// selected.
func FlowOptions(flows []flowdomain.Flow, designation flowdomain.Designation, f Form) []FlowOption {
	chosen := EffectiveFlow(f, designation, flows)
	out := make([]FlowOption, 0, len(flows))
	for _, fl := range flows {
		out = append(out, FlowOption{PK: fl.PK, Label: fl.Label(), Selected: chosen != "" && fl.PK == chosen})
	}
	return out
}

// Payload merges the form, the submitted resource selection and the flow
// defaults into the outgoing source. The selection replaces
// AllowedServers.
func Payload(f Form, selection []string, catalogs map[flowdomain.Designation][]flowdomain.Flow) sourcedomain.Source {
	return sourcedomain.Source{
		PK:                 f.PK,
		Slug:               f.Slug,
		Name:               f.Name,
		Enabled:            f.Enabled,
		ClientID:           f.ClientID,
		UserMatchingMode:   f.UserMatchingMode,
		AllowFriends:       f.AllowFriends,
		AllowedServers:     append([]string{}, selection...),
		AuthenticationFlow: EffectiveFlow(f, flowdomain.DesignationAuthentication, catalogs[flowdomain.DesignationAuthentication]),
		EnrollmentFlow:     EffectiveFlow(f, flowdomain.DesignationEnrollment, catalogs[flowdomain.DesignationEnrollment]),
	}
}

// Validate applies the required-field policy to a payload.
func Validate(payload sourcedomain.Source) error {
	return sourcedomain.Validate(payload)
}

type ModeOption struct {
	Value       sourcedomain.UserMatchingMode `json:"value"`
	Description string                        `json:"description"`
	Selected    bool                          `json:"selected"`
}

func ModeOptions(current sourcedomain.UserMatchingMode) []ModeOption {
	out := make([]ModeOption, 0, len(sourcedomain.UserMatchingModes))
	for _, m := range sourcedomain.UserMatchingModes {
		out = append(out, ModeOption{Value: m, Description: m.Description(), Selected: m == current})
	}
	return out
}
