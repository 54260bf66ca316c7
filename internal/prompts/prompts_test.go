package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpecialized(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{
			name:  "kubernetes keyword",
			query: "How do I scale a deployment with kubectl?",
			want:  Kubernetes,
		},
		{
			name:  "kubernetes wins over unix",
			query: "helm install on ubuntu",
			want:  Kubernetes,
		},
		{
			name:  "network keyword",
			query: "Set up a VPN with WireGuard",
			want:  Network,
		},
		{
			name:  "russian network keyword",
			query: "Как настроить сеть на сервере?",
			want:  Network,
		},
		{
			name:  "unix keyword",
			query: "write a bash script to rotate logs",
			want:  Unix,
		},
		{
			name:  "russian unix keyword",
			query: "какая команда покажет открытые порты",
			want:  Unix,
		},
		{
			name:  "no keywords falls back to general",
			query: "What is CI/CD?",
			want:  General,
		},
		{
			name:  "case insensitive",
			query: "KUBERNETES networking",
			want:  Kubernetes,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Specialized(tt.query))
		})
	}
}
