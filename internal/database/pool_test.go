package database

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"refused", errors.New("dial tcp: connection refused"), true},
		{"bad conn", errors.New("driver: bad connection"), true},
		{"syntax", errors.New(`pq: syntax error at or near "SELEC"`), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestConfigDSN(t *testing.T) {
	cfg := Config{Host: "db", Port: 5433, User: "u", Password: "p", DBName: "parkgate", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=parkgate sslmode=disable", cfg.DSN())
}
