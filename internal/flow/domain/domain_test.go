package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var catalog = []Flow{
	{PK: "1", Slug: "custom-login", Name: "Custom", Designation: DesignationAuthentication},
	{PK: "2", Slug: "default-source-authentication", Name: "Default", Designation: DesignationAuthentication},
}

func TestDefaultSlug(t *testing.T) {
	assert.Equal(t, "default-source-authentication", DefaultSlug(DesignationAuthentication))
	assert.Equal(t, "default-source-enrollment", DefaultSlug(DesignationEnrollment))
}

func TestSelectDefault(t *testing.T) {
	tests := []struct {
		name      string
		flows     []Flow
		current   string
		persisted bool
		want      string
	}{
		{name: "new config picks default slug", flows: catalog, want: "2"},
		{name: "new config without default slug", flows: catalog[:1], want: ""},
		{name: "explicit choice wins", flows: catalog, current: "1", want: "1"},
		{name: "persisted choice kept", flows: catalog, current: "1", persisted: true, want: "1"},
		{name: "persisted without flow stays empty", flows: catalog, persisted: true, want: ""},
		{name: "empty catalog", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SelectDefault(tt.flows, DesignationAuthentication, tt.current, tt.persisted)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelectDefaultUsesDesignationSlug(t *testing.T) {
	flows := []Flow{{PK: "9", Slug: "default-source-enrollment"}}
	assert.Equal(t, "", SelectDefault(flows, DesignationAuthentication, "", false))
	assert.Equal(t, "9", SelectDefault(flows, DesignationEnrollment, "", false))
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "Default (default-source-authentication)", catalog[1].Label())
}

func TestDesignationValid(t *testing.T) {
	assert.True(t, DesignationAuthentication.Valid())
	assert.True(t, DesignationEnrollment.Valid())
	assert.False(t, Designation("invalidation").Valid())
}
