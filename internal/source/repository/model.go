package repository

import (
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/plexsource/internal/source/domain"
	"gorm.io/datatypes"
)

// Model is the plex_sources row. The Plex token has no column.
type Model struct {
	ID                 snowflake.ID                `gorm:"column:id;primaryKey"`
	Slug               string                      `gorm:"column:slug;uniqueIndex;size:255;not null"`
	Name               string                      `gorm:"column:name;not null"`
	Enabled            bool                        `gorm:"column:enabled;not null"`
	ClientID           string                      `gorm:"column:client_id;size:255;not null"`
	UserMatchingMode   string                      `gorm:"column:user_matching_mode;size:32;not null"`
	AllowFriends       bool                        `gorm:"column:allow_friends;not null"`
	AllowedServers     datatypes.JSONSlice[string] `gorm:"column:allowed_servers"`
	AuthenticationFlow *string                     `gorm:"column:authentication_flow"`
	EnrollmentFlow     *string                     `gorm:"column:enrollment_flow"`
	CreatedAt          time.Time                   `gorm:"column:created_at"`
	UpdatedAt          time.Time                   `gorm:"column:updated_at"`
}

func (Model) TableName() string { return "plex_sources" }

func (m *Model) toDomain() *domain.Source {
	return &domain.Source{
		PK:                 strconv.FormatInt(int64(m.ID), 10),
		Slug:               m.Slug,
		Name:               m.Name,
		Enabled:            m.Enabled,
		ClientID:           m.ClientID,
		UserMatchingMode:   domain.UserMatchingMode(m.UserMatchingMode),
		AllowFriends:       m.AllowFriends,
		AllowedServers:     append([]string{}, m.AllowedServers...),
		AuthenticationFlow: deref(m.AuthenticationFlow),
		EnrollmentFlow:     deref(m.EnrollmentFlow),
	}
}

func (m *Model) apply(src domain.Source) {
	m.Name = src.Name
	m.Enabled = src.Enabled
	m.ClientID = src.ClientID
	m.UserMatchingMode = string(src.UserMatchingMode)
	m.AllowFriends = src.AllowFriends
	m.AllowedServers = datatypes.JSONSlice[string](append([]string{}, src.AllowedServers...))
	m.AuthenticationFlow = ref(src.AuthenticationFlow)
	m.EnrollmentFlow = ref(src.EnrollmentFlow)
}

func ref(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
