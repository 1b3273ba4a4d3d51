package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetString(t *testing.T) {
	t.Setenv("ACTIONLOG_TEST_STRING", "value")

	assert.Equal(t, "value", GetString("ACTIONLOG_TEST_STRING", "fallback"))
	assert.Equal(t, "fallback", GetString("ACTIONLOG_TEST_MISSING", "fallback"))
}

func TestGetInt(t *testing.T) {
	t.Setenv("ACTIONLOG_TEST_INT", "42")
	t.Setenv("ACTIONLOG_TEST_BAD_INT", "forty-two")

	assert.Equal(t, 42, GetInt("ACTIONLOG_TEST_INT", 7))
	assert.Equal(t, 7, GetInt("ACTIONLOG_TEST_BAD_INT", 7))
	assert.Equal(t, 7, GetInt("ACTIONLOG_TEST_MISSING", 7))
}

func TestGetBool(t *testing.T) {
	t.Setenv("ACTIONLOG_TEST_BOOL", " true ")
	t.Setenv("ACTIONLOG_TEST_BAD_BOOL", "maybe")

	assert.True(t, GetBool("ACTIONLOG_TEST_BOOL", false))
	assert.False(t, GetBool("ACTIONLOG_TEST_BAD_BOOL", false))
	assert.True(t, GetBool("ACTIONLOG_TEST_MISSING", true))
}
