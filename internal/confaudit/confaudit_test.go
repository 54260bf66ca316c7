package confaudit

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractFenced(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		want  string
		found bool
	}{
		{
			name:  "markdown fence",
			text:  "please check this\n```\nserver {\n  listen 80;\n}\n```",
			want:  "server {\n  listen 80;\n}",
			found: true,
		},
		{
			name:  "fence with language tag",
			text:  "```nginx\nserver { listen 80; }\n```",
			want:  "server { listen 80; }",
			found: true,
		},
		{
			name:  "triple quotes",
			text:  "'''<VirtualHost *:80>\n</VirtualHost>'''",
			want:  "<VirtualHost *:80>\n</VirtualHost>",
			found: true,
		},
		{
			name:  "no snippet",
			text:  "just a question about nginx",
			found: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := ExtractFenced(tt.text)
			assert.Equal(t, tt.found, found)
			if tt.found {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestAnalyzeNginx_MissingSemicolonSingleLine(t *testing.T) {
	// a one-line snippet must still flag the unterminated directive
	report := AnalyzeNginx("server { listen 80 }")

	assert.Contains(t, report, "# NGINX configuration analysis")
	assert.Contains(t, report, "missing semicolon")
	assert.Contains(t, report, "listen 80")
}

func TestAnalyzeNginx_BraceMismatch(t *testing.T) {
	report := AnalyzeNginx("server {\n  listen 80;\n")
	assert.Contains(t, report, "opening (1) and closing (0) braces")
}

func TestAnalyzeNginx_DuplicateListenPorts(t *testing.T) {
	config := `server {
  listen 80;
  server_name a.example.com;
}
server {
  listen 0.0.0.0:80;
  server_name b.example.com;
}`
	report := AnalyzeNginx(config)
	assert.Contains(t, report, "Duplicate port in listen directive: 80")
	assert.NotContains(t, report, "Duplicate server_name")
}

func TestAnalyzeNginx_DuplicateServerNames(t *testing.T) {
	config := `server {
  listen 80;
  server_name example.com;
}
server {
  listen 443;
  server_name example.com;
}`
	report := AnalyzeNginx(config)
	assert.Contains(t, report, "Duplicate server_name: example.com")
}

func TestAnalyzeNginx_PlaceholderPath(t *testing.T) {
	config := `server {
  listen 80;
  root /path/to/ ;
}`
	report := AnalyzeNginx(config)
	assert.Contains(t, report, "Placeholder path detected")
}

func TestAnalyzeNginx_SecuritySuggestions(t *testing.T) {
	config := `server {
  listen 80;
  server_tokens on;
}`
	report := AnalyzeNginx(config)
	assert.Contains(t, report, "server_tokens on")
	assert.Contains(t, report, "## Recommendations")
	assert.Contains(t, report, "X-Frame-Options")
	assert.Contains(t, report, "X-Content-Type-Options")
}

func TestAnalyzeNginx_CommentsIgnored(t *testing.T) {
	config := `server {
  # listen 8080
  listen 80;
  add_header X-Frame-Options "SAMEORIGIN";
  add_header X-Content-Type-Options "nosniff";
}`
	report := AnalyzeNginx(config)
	assert.NotContains(t, report, "missing semicolon")
	assert.NotContains(t, report, "8080")
}

func TestAnalyzeNginx_CleanConfig(t *testing.T) {
	config := `server {
  listen 80;
  server_name example.com;
  add_header X-Frame-Options "SAMEORIGIN";
  add_header X-Content-Type-Options "nosniff";
}`
	report := AnalyzeNginx(config)
	assert.Contains(t, report, "no obvious problems")
}

func TestAnalyzeApache(t *testing.T) {
	t.Run("duplicate vhost address", func(t *testing.T) {
		config := `<VirtualHost *:80>
ServerName a.example.com
</VirtualHost>
<VirtualHost *:80>
ServerName b.example.com
</VirtualHost>`
		report := AnalyzeApache(config)
		assert.Contains(t, report, "Duplicate VirtualHost address: *:80")
	})

	t.Run("unclosed tag", func(t *testing.T) {
		config := `<VirtualHost *:80
ServerName example.com`
		report := AnalyzeApache(config)
		assert.Contains(t, report, "unclosed tag")
	})

	t.Run("invalid servername", func(t *testing.T) {
		report := AnalyzeApache("ServerName\n")
		assert.Contains(t, report, "invalid ServerName directive")
	})

	t.Run("dangling open tags", func(t *testing.T) {
		config := `<VirtualHost *:80>
ServerName example.com`
		report := AnalyzeApache(config)
		assert.Contains(t, report, "Unclosed tags: VirtualHost")
	})

	t.Run("security recommendations", func(t *testing.T) {
		config := `<VirtualHost *:80>
ServerName example.com
ServerSignature On
</VirtualHost>`
		report := AnalyzeApache(config)
		assert.Contains(t, report, "ServerTokens Prod")
		assert.Contains(t, report, "ServerSignature Off")
		assert.Contains(t, report, "TraceEnable Off")
	})
}

func TestAnalyze_KindDetection(t *testing.T) {
	nginxReport := Analyze("server {\n  listen 80\n}", "")
	require.True(t, strings.Contains(nginxReport, "NGINX"))

	apacheReport := Analyze("<VirtualHost *:80>\n</VirtualHost>", "")
	require.True(t, strings.Contains(apacheReport, "Apache"))

	unknown := Analyze("some random text", "")
	assert.Contains(t, unknown, "Could not determine")

	httpd := Analyze("<VirtualHost *:80>\n</VirtualHost>", "httpd")
	assert.Contains(t, httpd, "Apache")
}
