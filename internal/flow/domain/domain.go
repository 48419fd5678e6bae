package domain

import (
	"context"
	"errors"
	"fmt"
)

type Designation string

const (
	DesignationAuthentication Designation = "authentication"
	DesignationEnrollment     Designation = "enrollment"
)

// Designations lists the designations a Plex source references.
var Designations = []Designation{DesignationAuthentication, DesignationEnrollment}

var (
	ErrReferenceLoadFailed = errors.New("reference_load_failed")
	ErrInvalidDesignation  = errors.New("invalid_designation")
)

func (d Designation) Valid() bool {
	return d == DesignationAuthentication || d == DesignationEnrollment
}

// Flow is a reference to a workflow defined on the identity backend.
type Flow struct {
	PK          string      `json:"pk" gorm:"column:pk;primaryKey"`
	Slug        string      `json:"slug" gorm:"column:slug;uniqueIndex"`
	Name        string      `json:"name" gorm:"column:name"`
	Designation Designation `json:"designation" gorm:"column:designation;index"`
}

func (Flow) TableName() string { return "flows" }

// Label is the option text shown for the flow.
func (f Flow) Label() string {
	return fmt.Sprintf("%s (%s)", f.Name, f.Slug)
}

// Repository lists flows of one designation.
type Repository interface {
	List(ctx context.Context, designation Designation) ([]Flow, error)
}

// DefaultSlug is the slug of the flow pre-selected for new sources.
func DefaultSlug(designation Designation) string {
	return "default-source-" + string(designation)
}

// SelectDefault returns the PK of the flow to pre-select. An explicit
// current choice is returned as is. The slug default only applies to
// configurations that were never persisted.
func SelectDefault(flows []Flow, designation Designation, current string, persisted bool) string {
	if current != "" {
		return current
	}
	if persisted {
		return ""
	}
	want := DefaultSlug(designation)
	for _, f := range flows {
		if f.Slug == want {
			return f.PK
		}
	}
	return ""
}
