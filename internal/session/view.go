package session

import (
	flowdomain "github.com/railzwaylabs/plexsource/internal/flow/domain"
	plexdomain "github.com/railzwaylabs/plexsource/internal/plex/domain"
	"github.com/railzwaylabs/plexsource/internal/plex/presenter"
)

type AuthorizationView struct {
	State  plexdomain.State       `json:"state"`
	URL    string                 `json:"url,omitempty"`
	Window *plexdomain.WindowSpec `json:"window,omitempty"`
	Error  string                 `json:"error,omitempty"`
}

type CatalogView struct {
	Loading bool         `json:"loading"`
	Error   string       `json:"error,omitempty"`
	Options []FlowOption `json:"options"`
}

// View is a render snapshot of a session. It never contains the credential.
type View struct {
	ID                string                                 `json:"id"`
	Persisted         bool                                   `json:"persisted"`
	Form              Form                                   `json:"form"`
	Authorization     *AuthorizationView                     `json:"authorization,omitempty"`
	Authorized        bool                                   `json:"authorized"`
	Resources         []ResourceOption                       `json:"resources"`
	DiscoveryError    string                                 `json:"discovery_error,omitempty"`
	Flows             map[flowdomain.Designation]CatalogView `json:"flows"`
	UserMatchingModes []ModeOption                           `json:"user_matching_modes"`
}

func (s *Session) viewLocked() View {
	v := View{
		ID:                s.id,
		Persisted:         s.form.Persisted(),
		Form:              s.form,
		Authorized:        s.credential != "",
		Resources:         ResourceOptions(s.resources, s.form.AllowedServers),
		Flows:             make(map[flowdomain.Designation]CatalogView, len(s.catalogs)),
		UserMatchingModes: ModeOptions(s.form.UserMatchingMode),
	}
	v.Form.AllowedServers = append([]string{}, s.form.AllowedServers...)

	if s.auth != nil {
		av := &AuthorizationView{State: s.auth.State, URL: s.auth.AuthorizationURL}
		if s.authErr != nil {
			av.Error = s.authErr.Error()
		}
		if r, ok := s.presenter.(*presenter.Remote); ok && s.auth.State == plexdomain.StatePending {
			if _, spec, open := r.Pending(); open {
				av.Window = &spec
			}
		}
		v.Authorization = av
	} else if s.authErr != nil {
		v.Authorization = &AuthorizationView{State: plexdomain.StateAbandoned, Error: s.authErr.Error()}
	}
	if s.discoveryErr != nil {
		v.DiscoveryError = s.discoveryErr.Error()
	}

	for des, c := range s.catalogs {
		cv := CatalogView{Loading: !c.loaded, Options: []FlowOption{}}
		if c.err != nil {
			cv.Error = c.err.Error()
		}
		if c.loaded {
			cv.Options = FlowOptions(c.flows, des, s.form)
		}
		v.Flows[des] = cv
	}
	return v
}
