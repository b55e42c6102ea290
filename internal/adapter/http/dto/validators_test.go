package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeStruct(t *testing.T) {
	ref := "  pi_3abc  "
	s := struct {
		Name string
		Ref  *string
	}{
		Name: "  <b>hello</b>  ",
		Ref:  &ref,
	}

	SanitizeStruct(&s)

	assert.Equal(t, "&lt;b&gt;hello&lt;/b&gt;", s.Name)
	assert.Equal(t, "pi_3abc", *s.Ref)
}

func TestSanitizeStruct_NonStruct(t *testing.T) {
	// Must not panic on non-pointer or non-struct input.
	SanitizeStruct("plain string")
	SanitizeStruct(42)
	var nilPtr *struct{ A string }
	SanitizeStruct(nilPtr)
}

func TestSafeStringRe(t *testing.T) {
	assert.True(t, safeStringRe.MatchString("pi_3OqXyZ.refund-1"))
	assert.False(t, safeStringRe.MatchString("pi_3OqXyZ; DROP TABLE payments"))
	assert.False(t, safeStringRe.MatchString(""))
}
