package commands

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aziz-Madhi/nafsy-sub001/pkg/runner/mcp"
)

type mcpFlags struct {
	transport string
	host      string
	port      int
	path      string
	cert      string
	key       string
	metrics   bool
}

func addMCP(topLevel *cobra.Command) {
	f := &mcpFlags{}

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve coach and companion chats to MCP clients.",
		Example: `
To let a local assistant read and post to your coach chat over HTTP:
$ nafsy mcp

To run under an MCP client that spawns its servers:
$ nafsy mcp --transport stdio
`,
		Long: `Serve nafsy over the Model Context Protocol. Clients can send messages to
the coach or companion channel, read and delete sessions, log a mood and read
the mood calendar. Sends go through the same optimistic path as the CLI, so
they are counted in /metrics and announced to the configured notifiers.

Over HTTP the server also answers GET /healthz.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := f.runner()
			if err != nil {
				return err
			}

			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			runner.Backend = e.backend
			runner.Identity = e.identity
			runner.Version = version
			runner.Log = e.log
			runner.Notifier = e.notifier
			if f.metrics {
				runner.Metrics = e.metrics.Handler()
			}
			if runner.Transport == mcp.TransportHTTP {
				runner.OnHTTPListening = func(a net.Addr) {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "nafsy MCP server on %s\n", f.url(a))
				}
			}
			return runner.Do(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&f.transport, "transport", string(mcp.TransportHTTP), "how clients connect: http or stdio")
	cmd.Flags().StringVar(&f.host, "http-host", "127.0.0.1", "interface the HTTP server binds")
	cmd.Flags().IntVar(&f.port, "http-port", 8080, "HTTP port, 0 picks a free one")
	cmd.Flags().StringVar(&f.path, "http-path", "/mcp", "path of the MCP endpoint")
	cmd.Flags().StringVar(&f.cert, "http-tls-cert", "", "certificate file, serves HTTPS together with --http-tls-key")
	cmd.Flags().StringVar(&f.key, "http-tls-key", "", "private key file for --http-tls-cert")
	cmd.Flags().BoolVar(&f.metrics, "metrics", true, "serve message counters on /metrics")

	topLevel.AddCommand(cmd)
}

func (f *mcpFlags) endpoint() string {
	path := strings.TrimSpace(f.path)
	if path == "" {
		return "/mcp"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}

func (f *mcpFlags) tls() bool {
	return strings.TrimSpace(f.cert) != "" && strings.TrimSpace(f.key) != ""
}

// runner validates the flags into everything the runner needs that does not
// come from the environment.
func (f *mcpFlags) runner() (mcp.Runner, error) {
	r := mcp.Runner{
		Name:             "nafsy",
		HTTPEndpointPath: f.endpoint(),
		HTTPServerCert:   strings.TrimSpace(f.cert),
		HTTPServerKey:    strings.TrimSpace(f.key),
	}
	switch strings.ToLower(strings.TrimSpace(f.transport)) {
	case "", string(mcp.TransportHTTP):
		if f.port < 0 || f.port > 65535 {
			return mcp.Runner{}, fmt.Errorf("invalid http-port %d", f.port)
		}
		host := strings.TrimSpace(f.host)
		if host == "" {
			host = "127.0.0.1"
		}
		r.Transport = mcp.TransportHTTP
		r.HTTPListenAddr = net.JoinHostPort(host, strconv.Itoa(f.port))
	case string(mcp.TransportStdio):
		r.Transport = mcp.TransportStdio
	default:
		return mcp.Runner{}, fmt.Errorf("unsupported transport %q, use http or stdio", f.transport)
	}
	return r, nil
}

// url is the address clients should dial once the listener is up. Wildcard
// binds are shown as the loopback address.
func (f *mcpFlags) url(a net.Addr) string {
	scheme := "http"
	if f.tls() {
		scheme = "https"
	}
	tcp, ok := a.(*net.TCPAddr)
	if !ok {
		return fmt.Sprintf("%s://%s%s", scheme, a.String(), f.endpoint())
	}
	host := strings.TrimSpace(f.host)
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
		if tcp.IP != nil && !tcp.IP.IsUnspecified() {
			host = tcp.IP.String()
		}
	}
	return fmt.Sprintf("%s://%s%s", scheme, net.JoinHostPort(host, strconv.Itoa(tcp.Port)), f.endpoint())
}
