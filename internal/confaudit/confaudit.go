// Package confaudit performs static analysis of web server configuration
// files (NGINX, Apache) and produces a markdown report of problems and
// hardening recommendations.
package confaudit

import (
	"fmt"
	"regexp"
	"strings"
)

// Known configuration kinds
const (
	KindNginx  = "nginx"
	KindApache = "apache"
)

var fencedRe = regexp.MustCompile("```(?:nginx|apache|conf|config)?\\s*([\\s\\S]*?)```")
var quotedRe = regexp.MustCompile(`'''([\s\S]*?)'''`)

// ExtractFenced pulls a configuration snippet out of a fenced code block
// inside free-form text. Both markdown fences and triple quotes are accepted.
func ExtractFenced(text string) (string, bool) {
	if m := fencedRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	if m := quotedRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	return "", false
}

// Analyze detects the configuration kind when not given and dispatches to
// the matching analyzer.
func Analyze(configText, kind string) string {
	if kind == "" {
		switch {
		case strings.Contains(configText, "server {") || strings.Contains(configText, "http {"):
			kind = KindNginx
		case strings.Contains(configText, "<VirtualHost") || strings.Contains(configText, "ServerName"):
			kind = KindApache
		default:
			return "Could not determine the configuration file type. Please specify it explicitly."
		}
	}

	switch strings.ToLower(kind) {
	case KindNginx:
		return AnalyzeNginx(configText)
	case KindApache, "httpd":
		return AnalyzeApache(configText)
	default:
		return fmt.Sprintf("Unsupported configuration type: %s. Supported types: nginx, apache.", kind)
	}
}

// nginxStatement is one directive or block delimiter parsed out of a config.
// term records what ended the statement: ';', '{', '}' or 0 at end of input.
type nginxStatement struct {
	text string
	line int
	term byte
}

// splitNginx tokenizes a config into statements. NGINX directives end with a
// semicolon and blocks are brace-delimited, so splitting on those three
// characters works for both multi-line files and single-line snippets.
func splitNginx(config string) []nginxStatement {
	var stmts []nginxStatement
	var b strings.Builder
	line := 1
	startLine := 1
	inComment := false

	flush := func(term byte) {
		text := strings.TrimSpace(b.String())
		b.Reset()
		if text != "" {
			stmts = append(stmts, nginxStatement{text: text, line: startLine, term: term})
		}
		startLine = line
	}

	for _, r := range config {
		switch {
		case r == '\n':
			line++
			inComment = false
			if strings.TrimSpace(b.String()) == "" {
				startLine = line
			}
			b.WriteRune(' ')
		case inComment:
		case r == '#':
			inComment = true
		case r == ';' || r == '{' || r == '}':
			flush(byte(r))
		default:
			if strings.TrimSpace(b.String()) == "" && !isSpace(r) {
				startLine = line
			}
			b.WriteRune(r)
		}
	}
	flush(0)
	return stmts
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\r'
}

// AnalyzeNginx checks an NGINX configuration for syntax slips and common
// security misconfigurations.
func AnalyzeNginx(configText string) string {
	var problems, suggestions []string

	openBraces := strings.Count(configText, "{")
	closeBraces := strings.Count(configText, "}")
	if openBraces != closeBraces {
		problems = append(problems, fmt.Sprintf("Mismatch between opening (%d) and closing (%d) braces", openBraces, closeBraces))
	}

	stmts := splitNginx(configText)

	// a directive ended by '}' or end of input never got its semicolon
	for _, s := range stmts {
		if s.term == '}' || s.term == 0 {
			problems = append(problems, fmt.Sprintf("Line %d: missing semicolon at the end of: '%s'", s.line, s.text))
		}
	}

	seenPorts := map[string]bool{}
	seenNames := map[string]bool{}
	for _, s := range stmts {
		fields := strings.Fields(s.text)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "listen":
			if len(fields) < 2 {
				continue
			}
			port := fields[1]
			if idx := strings.LastIndex(port, ":"); idx >= 0 {
				port = port[idx+1:]
			}
			if seenPorts[port] {
				problems = append(problems, "Duplicate port in listen directive: "+port)
			}
			seenPorts[port] = true
		case "server_name":
			for _, name := range fields[1:] {
				if seenNames[name] {
					problems = append(problems, "Duplicate server_name: "+name)
				}
				seenNames[name] = true
			}
		case "root", "access_log", "error_log", "include":
			if len(fields) >= 2 && fields[1] == "/path/to/" {
				problems = append(problems, fmt.Sprintf("Placeholder path detected: %s in directive %s", fields[1], fields[0]))
			}
		}
	}

	if strings.Contains(configText, "server_tokens on") {
		problems = append(problems, "server_tokens on: should be disabled to improve security")
		suggestions = append(suggestions, "Add 'server_tokens off;' to hide the NGINX version in response headers")
	}
	if !strings.Contains(configText, "add_header X-Frame-Options") {
		suggestions = append(suggestions, `Consider adding 'add_header X-Frame-Options "SAMEORIGIN";' to protect against clickjacking`)
	}
	if !strings.Contains(configText, "add_header X-Content-Type-Options") {
		suggestions = append(suggestions, `Consider adding 'add_header X-Content-Type-Options "nosniff";' to prevent MIME sniffing`)
	}

	return render("NGINX", problems, suggestions)
}

var vhostRe = regexp.MustCompile(`<VirtualHost\s+([^>]+)>`)

// AnalyzeApache checks an Apache configuration for tag balance, directive
// syntax and common security misconfigurations.
func AnalyzeApache(configText string) string {
	var problems, suggestions []string

	seenAddrs := map[string]bool{}
	for _, m := range vhostRe.FindAllStringSubmatch(configText, -1) {
		for _, addr := range strings.Fields(m[1]) {
			if seenAddrs[addr] {
				problems = append(problems, "Duplicate VirtualHost address: "+addr)
			}
			seenAddrs[addr] = true
		}
	}

	lines := strings.Split(configText, "\n")
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "<") && !strings.HasPrefix(line, "</") && !strings.Contains(line, ">") {
			problems = append(problems, fmt.Sprintf("Line %d: unclosed tag: '%s'", i+1, line))
		}

		if strings.HasPrefix(line, "ServerName") {
			if len(strings.Fields(line)) < 2 {
				problems = append(problems, fmt.Sprintf("Line %d: invalid ServerName directive: '%s'", i+1, line))
			}
		}
	}

	var openTags []string
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "<") && !strings.HasPrefix(line, "</") && strings.Contains(line, ">") {
			openTags = append(openTags, strings.TrimSuffix(strings.Fields(line[1:])[0], ">"))
		}

		if strings.HasPrefix(line, "</") && strings.Contains(line, ">") {
			tag := strings.TrimSuffix(strings.Fields(line[2:])[0], ">")
			if len(openTags) > 0 && openTags[len(openTags)-1] == tag {
				openTags = openTags[:len(openTags)-1]
			} else {
				problems = append(problems, "Incorrectly closed tag: "+tag)
			}
		}
	}
	if len(openTags) > 0 {
		problems = append(problems, "Unclosed tags: "+strings.Join(openTags, ", "))
	}

	if strings.Contains(configText, "ServerTokens Full") || !strings.Contains(configText, "ServerTokens Prod") {
		suggestions = append(suggestions, "Use 'ServerTokens Prod' to hide server version information")
	}
	if strings.Contains(configText, "ServerSignature On") {
		suggestions = append(suggestions, "Use 'ServerSignature Off' to disable the server signature")
	}
	if strings.Contains(configText, "TraceEnable On") || !strings.Contains(configText, "TraceEnable") {
		suggestions = append(suggestions, "Use 'TraceEnable Off' to guard against TRACE method attacks")
	}

	return render("Apache", problems, suggestions)
}

func render(server string, problems, suggestions []string) string {
	if len(problems) == 0 && len(suggestions) == 0 {
		return fmt.Sprintf("The %s configuration analysis found no obvious problems. The configuration looks correct.", server)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s configuration analysis\n\n", server)

	if len(problems) > 0 {
		b.WriteString("## Problems found\n\n")
		for _, p := range problems {
			b.WriteString("- " + p + "\n")
		}
		b.WriteString("\n")
	}

	if len(suggestions) > 0 {
		b.WriteString("## Recommendations\n\n")
		for _, s := range suggestions {
			b.WriteString("- " + s + "\n")
		}
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}
