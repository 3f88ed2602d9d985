package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/udl/extension/internal/config"
)

func TestNew_Unreachable(t *testing.T) {
	_, err := New(config.PostgresConfig{
		Host:     "127.0.0.1",
		Port:     "1",
		Username: "postgres",
		Password: "postgres",
		Database: "udl",
	}, nil)
	assert.ErrorContains(t, err, "failed to connect to postgres")
}
