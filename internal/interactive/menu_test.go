package interactive

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChoicesAndDispatch(t *testing.T) {
	ran := ""
	options := []MenuOption{
		{Name: "Show Config", Description: "Display configuration", Action: func() error { ran = "config"; return nil }},
		{Name: "Report", Action: func() error { ran = "report"; return errors.New("no report") }},
	}

	assert.Equal(t, []string{"Show Config - Display configuration", "Report", "Exit"}, Choices(options))

	assert.NoError(t, Dispatch(options, "Show Config - Display configuration"))
	assert.Equal(t, "config", ran)

	assert.EqualError(t, Dispatch(options, "Report"), "no report")
	assert.Equal(t, "report", ran)

	assert.ErrorIs(t, Dispatch(options, "Exit"), ErrExit)
	assert.ErrorIs(t, Dispatch(options, "Teardown"), ErrInvalidSelection)
}
