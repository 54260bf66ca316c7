// Package fallback provides the built-in provider of canned answers. It
// needs no network and no credential, which makes it the safety net when
// every real backend is unreachable.
package fallback

import (
	"context"
	"strings"

	"opsgate/internal/confaudit"
	"opsgate/internal/core"
	"opsgate/internal/providers"
)

func init() {
	providers.Register(providers.NameFallback, func(cfg providers.Config) core.Provider {
		return New()
	})
}

// Provider implements the core.Provider interface with canned responses
type Provider struct{}

// New creates a new fallback provider
func New() *Provider {
	return &Provider{}
}

// Descriptor returns the provider's static capability descriptor
func (p *Provider) Descriptor() core.ProviderDescriptor {
	return core.ProviderDescriptor{
		Name:                    providers.NameFallback,
		RequiresCredential:      false,
		SupportsNativeStreaming: false,
	}
}

// CheckConnection always succeeds; there is nothing to connect to
func (p *Provider) CheckConnection(ctx context.Context) bool {
	return true
}

// ListModels returns the virtual model catalogue. The names describe topic
// areas rather than real models.
func (p *Provider) ListModels(ctx context.Context) []core.ModelInfo {
	return []core.ModelInfo{
		{Name: "fallback-unix", Description: "Canned answers about UNIX systems"},
		{Name: "fallback-network", Description: "Canned answers about networking and VPN"},
		{Name: "fallback-kubernetes", Description: "Canned answers about Kubernetes"},
		{Name: "fallback-analyzer", Description: "Configuration file analysis"},
	}
}

// Complete returns the canned response matching the prompt topic
func (p *Provider) Complete(ctx context.Context, req *core.CompletionRequest) string {
	return respond(req.Prompt)
}

// StreamCompletion replays the canned response as an emulated stream
func (p *Provider) StreamCompletion(ctx context.Context, req *core.CompletionRequest) <-chan core.CompletionEvent {
	ch := make(chan core.CompletionEvent)

	go func() {
		defer close(ch)
		providers.EmitChunked(ctx, ch, providers.NameFallback, respond(req.Prompt))
	}()

	return ch
}

// audit and config keywords, with Russian forms for the bilingual audience
var (
	auditWords  = []string{"check", "analyze", "проверь", "проанализируй"}
	configWords = []string{"config", "конфиг"}
)

const missingSnippetResponse = "Could not find a configuration file in your message. " +
	"Please wrap the configuration in triple backticks (```configuration```)."

// respond routes the prompt to a canned answer. Configuration audit requests
// are handed to the analyzer when the prompt carries a fenced snippet, and
// get an instruction to fence the config when it doesn't.
func respond(prompt string) string {
	lower := strings.ToLower(prompt)

	if containsAny(lower, auditWords) && containsAny(lower, configWords) {
		kind := ""
		if strings.Contains(lower, "nginx") {
			kind = confaudit.KindNginx
		} else if strings.Contains(lower, "apache") {
			kind = confaudit.KindApache
		}
		snippet, ok := confaudit.ExtractFenced(prompt)
		if !ok {
			return missingSnippetResponse
		}
		return confaudit.Analyze(snippet, kind)
	}

	switch {
	case strings.Contains(lower, "unix") || strings.Contains(lower, "linux"):
		return unixResponse
	case strings.Contains(lower, "vpn") || strings.Contains(lower, "tor") || strings.Contains(lower, "лукови"):
		return networkResponse(lower)
	case strings.Contains(lower, "kubernetes") || strings.Contains(lower, "k8s"):
		return kubernetesResponse
	default:
		return generalResponse
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func networkResponse(lower string) string {
	if strings.Contains(lower, "tor") || strings.Contains(lower, "лукович") || strings.Contains(lower, "onion") {
		return torResponse
	}
	return netCommandsResponse
}

const unixResponse = `# UNIX/Linux systems - essential commands

- ` + "`ls`" + ` - list directory contents
- ` + "`cd`" + ` - change directory
- ` + "`pwd`" + ` - print working directory
- ` + "`mkdir`" + ` - create a directory
- ` + "`rm`" + ` - remove files
- ` + "`cp`" + ` - copy files
- ` + "`mv`" + ` - move/rename files
- ` + "`cat`" + ` - print file contents
- ` + "`grep`" + ` - search text in files
- ` + "`find`" + ` - find files
- ` + "`chmod`" + ` - change file permissions
- ` + "`chown`" + ` - change file ownership
- ` + "`sudo`" + ` - run commands with administrator privileges
- ` + "`apt/yum/dnf`" + ` - package management

For help on any command, run: ` + "`man command_name`"

const torResponse = `# Setting up Tor (onion routing)

Tor (The Onion Router) provides anonymous communication. Here is how to set
up an onion-routed proxy:

## 1. Install Tor
` + "```bash" + `
# Debian/Ubuntu
sudo apt update
sudo apt install tor

# Fedora
sudo dnf install tor

# Arch Linux
sudo pacman -S tor
` + "```" + `

## 2. Configure Tor as a SOCKS proxy
Edit ` + "`/etc/tor/torrc`" + ` and add or uncomment:
` + "```" + `
SOCKSPort 9050
ControlPort 9051
` + "```" + `

## 3. Start the Tor service
` + "```bash" + `
sudo systemctl start tor
sudo systemctl enable tor
` + "```" + `

## 4. Route traffic through Tor
Verify the proxy works:
` + "```bash" + `
curl --socks5 127.0.0.1:9050 https://check.torproject.org/api/ip
` + "```" + `

For transparent redirection install ` + "`torsocks`" + ` and wrap programs:
` + "```bash" + `
torsocks program_name
` + "```" + `

## 5. Hidden services
To publish a hidden service, add to ` + "`/etc/tor/torrc`" + `:
` + "```" + `
HiddenServiceDir /var/lib/tor/hidden_service/
HiddenServicePort 80 127.0.0.1:8080
` + "```" + `

Restart Tor; the .onion address appears in:
` + "```bash" + `
sudo cat /var/lib/tor/hidden_service/hostname
` + "```"

const netCommandsResponse = `# Essential networking commands in UNIX/Linux

- ` + "`ip a`" + ` or ` + "`ifconfig`" + ` - show network interfaces
- ` + "`ip r`" + ` or ` + "`route`" + ` - show the routing table
- ` + "`ping host`" + ` - check host reachability
- ` + "`traceroute host`" + ` - trace the route to a host
- ` + "`netstat -tuln`" + ` - open ports and connections
- ` + "`ss -tuln`" + ` - open ports (modern netstat replacement)
- ` + "`nmap`" + ` - port and service scanning
- ` + "`dig`" + ` or ` + "`nslookup`" + ` - DNS queries
- ` + "`curl`" + ` or ` + "`wget`" + ` - HTTP requests
- ` + "`iptables`" + ` - firewall configuration (legacy)
- ` + "`nftables`" + ` or ` + "`firewalld`" + ` - modern firewalls
- ` + "`tcpdump`" + ` - capture and inspect network traffic
- ` + "`ssh user@host`" + ` - secure remote access`

const kubernetesResponse = `# Installing and running Kubernetes

## Quick start on Ubuntu/Debian
` + "```bash" + `
# Update the system
sudo apt update && sudo apt upgrade -y

# Install Docker
sudo apt install -y docker.io
sudo systemctl enable docker
sudo systemctl start docker

# Install kubectl
curl -LO "https://dl.k8s.io/release/$(curl -L -s https://dl.k8s.io/release/stable.txt)/bin/linux/amd64/kubectl"
sudo install -o root -g root -m 0755 kubectl /usr/local/bin/kubectl

# Install minikube for a test cluster
curl -LO https://storage.googleapis.com/minikube/releases/latest/minikube-linux-amd64
sudo install minikube-linux-amd64 /usr/local/bin/minikube

# Start the cluster
minikube start
` + "```" + `

## Full cluster with kubeadm
` + "```bash" + `
# Disable swap
sudo swapoff -a

# Install kubeadm, kubelet and kubectl
sudo apt-get update && sudo apt-get install -y apt-transport-https curl
sudo apt-get install -y kubelet kubeadm kubectl
sudo apt-mark hold kubelet kubeadm kubectl

# Initialize the control plane
sudo kubeadm init --pod-network-cidr=10.244.0.0/16

# Configure kubectl for the current user
mkdir -p $HOME/.kube
sudo cp -i /etc/kubernetes/admin.conf $HOME/.kube/config
sudo chown $(id -u):$(id -g) $HOME/.kube/config

# Install a network plugin (Flannel)
kubectl apply -f https://raw.githubusercontent.com/coreos/flannel/master/Documentation/kube-flannel.yml
` + "```" + `

## Verify the cluster
` + "```bash" + `
kubectl get nodes
kubectl get pods --all-namespaces
` + "```"

const generalResponse = `# DevOps reference

Hello! I can provide information on the following topics:

## Linux/Unix systems
- Package installation and configuration
- User and permission management
- Process and service management
- Filesystems and disks

## Networking and VPN
- Network interface configuration
- Routing and firewalls
- VPN (OpenVPN, WireGuard)
- Tor (onion routing)

## Containers
- Docker
- Docker Compose
- Container management basics

## Orchestration
- Kubernetes (install, configure, operate)
- Helm
- Basic manifests and deployments

## CI/CD
- Pipeline configuration
- GitHub Actions
- Jenkins
- GitLab CI

Ask a specific question on one of these topics and I will give more detail.`
