package string

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToSnakeCase(t *testing.T) {
	assert.Equal(t, "password_confirm", ToSnakeCase("PasswordConfirm"))
	assert.Equal(t, "first_name", ToSnakeCase("FirstName"))
	assert.Equal(t, "id", ToSnakeCase("ID"))
	assert.Equal(t, "user_id", ToSnakeCase("UserID"))
}
