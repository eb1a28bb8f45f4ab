// Terminal controller for the panel API
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	reset  = "\033[0m"
	bold   = "\033[1m"
	red    = "\033[31m"
	green  = "\033[32m"
	yellow = "\033[33m"
	cyan   = "\033[36m"
	dim    = "\033[90m"
	sep    = "──────────────────────────────────────────"

	defaultPanelAddr = "127.0.0.1:7500"
	cliTimeout       = 30 * time.Second
)

type cli struct {
	addr   string
	client *Client
	in     *bufio.Scanner
	out    io.Writer
	// tokenFile is empty when sessions are not persisted.
	tokenFile string
}

func newCLI() *cli {
	c := &cli{
		addr: defaultPanelAddr,
		in:   bufio.NewScanner(os.Stdin),
		out:  os.Stdout,
	}
	if dir, err := os.UserConfigDir(); err == nil {
		c.tokenFile = filepath.Join(dir, "frpc-panel", "tokens.json")
	}
	return c
}

func (c *cli) parseFlags(a []string) []string {
	var rest []string
	for i := 0; i < len(a); i++ {
		if a[i] == "--addr" && i+1 < len(a) {
			c.addr = a[i+1]
			i++
		} else {
			rest = append(rest, a[i])
		}
	}
	if env := os.Getenv("FRPC_PANEL_ADDR"); env != "" && c.addr == defaultPanelAddr {
		c.addr = env
	}
	c.client = NewClient(c.addr)
	c.client.SetToken(c.loadToken())
	return rest
}

// --- session persistence ---

func (c *cli) readTokens() map[string]string {
	tokens := map[string]string{}
	if c.tokenFile == "" {
		return tokens
	}
	data, err := os.ReadFile(c.tokenFile)
	if err != nil {
		return tokens
	}
	json.Unmarshal(data, &tokens)
	return tokens
}

func (c *cli) loadToken() string {
	return c.readTokens()[c.addr]
}

func (c *cli) saveToken(token string) {
	if c.tokenFile == "" {
		return
	}
	tokens := c.readTokens()
	if token == "" {
		delete(tokens, c.addr)
	} else {
		tokens[c.addr] = token
	}
	data, err := json.MarshalIndent(tokens, "", "  ")
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(c.tokenFile), 0700); err != nil {
		c.warnf("can't save session: %s", err)
		return
	}
	if err := os.WriteFile(c.tokenFile, data, 0600); err != nil {
		c.warnf("can't save session: %s", err)
	}
}

// --- output helpers ---

func (c *cli) okf(format string, a ...any) {
	fmt.Fprintf(c.out, "  %s✓%s %s\n", green, reset, fmt.Sprintf(format, a...))
}

func (c *cli) warnf(format string, a ...any) {
	fmt.Fprintf(c.out, "  %s! %s%s\n", yellow, fmt.Sprintf(format, a...), reset)
}

func (c *cli) usage(s string) bool {
	fmt.Fprintf(c.out, "  %sUsage: %s%s\n", yellow, s, reset)
	return false
}

// fail prints err and returns false so callers can `return c.fail(err)`.
func (c *cli) fail(err error) bool {
	switch {
	case IsUnauthorized(err):
		fmt.Fprintf(c.out, "  %s✗ Not logged in.%s Run 'login' (or 'setup' on a fresh panel)\n", red, reset)
	default:
		fmt.Fprintf(c.out, "  %s✗ %s%s\n", red, connErr(err), reset)
	}
	return false
}

func connErr(err error) string {
	s := err.Error()
	if strings.Contains(s, "refused") || strings.Contains(s, "No connection") || strings.Contains(s, "target machine actively refused") {
		return "panel not running"
	}
	return s
}

// --- REPL ---

func (c *cli) repl() {
	fmt.Fprintf(c.out, "\n%s%sfrpc-panel%s\n", bold, cyan, reset)
	fmt.Fprintf(c.out, "%s%s%s\n", dim, sep, reset)
	fmt.Fprintf(c.out, "Panel: %s%s%s  |  Type %shelp%s for commands\n\n", cyan, c.addr, reset, cyan, reset)

	for {
		fmt.Fprintf(c.out, "%s❯%s ", cyan, reset)
		if !c.in.Scan() {
			break
		}
		line := strings.TrimSpace(c.in.Text())
		if line == "" {
			continue
		}
		c.runCmd(line)
		fmt.Fprintln(c.out)
	}
}

func (c *cli) prompt(label string) string {
	fmt.Fprintf(c.out, "  %s%s:%s ", yellow, label, reset)
	if !c.in.Scan() {
		return ""
	}
	return strings.TrimSpace(c.in.Text())
}

// runCmd executes one command line and reports whether it succeeded.
func (c *cli) runCmd(input string) bool {
	return c.run(splitArgs(input))
}

// splitArgs splits a command line on spaces, keeping quoted runs together so
// that name="my home" stays one argument. Quotes are removed.
func splitArgs(input string) []string {
	var (
		args  []string
		cur   strings.Builder
		quote rune
		inArg bool
	)
	for _, r := range input {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote, inArg = r, true
		case r == ' ' || r == '\t':
			if inArg {
				args = append(args, cur.String())
				cur.Reset()
				inArg = false
			}
		default:
			cur.WriteRune(r)
			inArg = true
		}
	}
	if inArg {
		args = append(args, cur.String())
	}
	return args
}

func (c *cli) run(parts []string) bool {
	if len(parts) == 0 {
		return true
	}
	cmd := parts[0]
	args := parts[1:]

	ctx, cancel := context.WithTimeout(context.Background(), cliTimeout)
	defer cancel()

	switch cmd {
	case "setup":
		return c.doSetup(ctx, args)
	case "login":
		return c.doLogin(ctx, args)
	case "logout":
		return c.doLogout(ctx)
	case "ls", "list":
		return c.doList(ctx)
	case "show":
		if len(args) != 1 {
			return c.usage("show <server>")
		}
		return c.doShow(ctx, args[0])
	case "add":
		return c.doAdd(ctx, args)
	case "edit":
		if len(args) < 2 {
			return c.usage("edit <server> key=value...")
		}
		return c.doEdit(ctx, args[0], args[1:])
	case "rm", "delete":
		if len(args) != 1 {
			return c.usage("rm <server>")
		}
		return c.doRemove(ctx, args[0])
	case "proxy":
		return c.doProxy(ctx, args)
	case "start", "stop", "restart":
		if len(args) != 1 {
			return c.usage(cmd + " <server>")
		}
		return c.doControl(ctx, args[0], cmd)
	case "status":
		if len(args) == 0 {
			return c.doList(ctx)
		}
		return c.doStatus(ctx, args[0])
	case "logs":
		// following is open-ended
		cancel()
		return c.doLogs(args)
	case "config":
		if len(args) != 1 {
			return c.usage("config <server>")
		}
		return c.doConfig(ctx, args[0])
	case "version":
		return c.doVersion(ctx)
	case "latest":
		return c.doLatest(ctx)
	case "install":
		cancel()
		return c.doInstall()
	case "upload":
		if len(args) != 1 {
			return c.usage("upload <frp_x.y.z_os_arch.tar.gz|.zip>")
		}
		cancel()
		return c.doUpload(args[0])
	case "help":
		c.printHelp()
	case "clear", "cls":
		fmt.Fprint(c.out, "\033[H\033[2J")
	case "exit", "quit":
		os.Exit(0)
	default:
		fmt.Fprintf(c.out, "  %s✗ Unknown: %s%s\n", red, cmd, reset)
		return false
	}
	return true
}

// --- auth ---

func (c *cli) passwordArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return c.prompt("Password")
}

func (c *cli) doSetup(ctx context.Context, args []string) bool {
	password := c.passwordArg(args)
	if len(args) == 0 && c.prompt("Repeat password") != password {
		fmt.Fprintf(c.out, "  %s✗ Passwords do not match%s\n", red, reset)
		return false
	}
	if err := c.client.Setup(ctx, password); err != nil {
		return c.fail(err)
	}
	c.saveToken(c.client.Token())
	c.okf("Admin password set, logged in")
	return true
}

func (c *cli) doLogin(ctx context.Context, args []string) bool {
	if err := c.client.Login(ctx, c.passwordArg(args)); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			fmt.Fprintf(c.out, "  %s✗ %s%s\n", red, apiErr.Message, reset)
			return false
		}
		return c.fail(err)
	}
	c.saveToken(c.client.Token())
	c.okf("Logged in to %s", c.addr)
	return true
}

func (c *cli) doLogout(ctx context.Context) bool {
	err := c.client.Logout(ctx)
	c.saveToken("")
	if err != nil && !IsUnauthorized(err) {
		return c.fail(err)
	}
	c.okf("Logged out")
	return true
}

// --- servers ---

// resolveServer accepts a full ID, a unique ID prefix or a profile name.
func (c *cli) resolveServer(ctx context.Context, ref string) (*ServerView, error) {
	servers, err := c.client.ListServers(ctx)
	if err != nil {
		return nil, err
	}
	return matchServer(servers, ref)
}

func matchServer(servers []ServerView, ref string) (*ServerView, error) {
	var byPrefix []int
	for i := range servers {
		if servers[i].ID == ref {
			return &servers[i], nil
		}
		if strings.HasPrefix(servers[i].ID, ref) {
			byPrefix = append(byPrefix, i)
		}
	}
	if len(byPrefix) == 1 {
		return &servers[byPrefix[0]], nil
	}
	if len(byPrefix) > 1 {
		return nil, fmt.Errorf("%q matches %d servers", ref, len(byPrefix))
	}
	var byName []int
	for i := range servers {
		if servers[i].Name == ref {
			byName = append(byName, i)
		}
	}
	switch len(byName) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrServerNotFound, ref)
	case 1:
		return &servers[byName[0]], nil
	}
	return nil, fmt.Errorf("%q names %d servers, use the ID", ref, len(byName))
}

func matchProxy(proxies []ProxyRule, ref string) (*ProxyRule, error) {
	for i := range proxies {
		if proxies[i].ID == ref || proxies[i].Name == ref {
			return &proxies[i], nil
		}
	}
	var hit *ProxyRule
	for i := range proxies {
		if strings.HasPrefix(proxies[i].ID, ref) {
			if hit != nil {
				return nil, fmt.Errorf("%q matches several proxies", ref)
			}
			hit = &proxies[i]
		}
	}
	if hit == nil {
		return nil, fmt.Errorf("%w: %s", ErrProxyNotFound, ref)
	}
	return hit, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func runState(running bool, pid int) string {
	if running {
		return fmt.Sprintf("%s● running%s %s(pid %d)%s", green, reset, dim, pid, reset)
	}
	return fmt.Sprintf("%s○ stopped%s", dim, reset)
}

func (c *cli) doList(ctx context.Context) bool {
	servers, err := c.client.ListServers(ctx)
	if err != nil {
		return c.fail(err)
	}
	if len(servers) == 0 {
		fmt.Fprintf(c.out, "  %sNo servers yet. Try: add name=home addr=frps.example.com port=7000%s\n", dim, reset)
		return true
	}
	fmt.Fprintf(c.out, "  %s%-10s %-18s %-28s %-8s %s%s\n", dim, "ID", "NAME", "SERVER", "PROXIES", "STATUS", reset)
	fmt.Fprintf(c.out, "  %s%s%s\n", dim, sep+sep, reset)
	for _, s := range servers {
		fmt.Fprintf(c.out, "  %-10s %-18s %-28s %-8d %s\n", shortID(s.ID), s.Name,
			fmt.Sprintf("%s:%d", s.ServerAddr, s.ServerPort), len(s.Proxies), runState(s.Running, s.PID))
	}
	return true
}

func (c *cli) printServer(s *ServerView) {
	fmt.Fprintf(c.out, "  %s%s%s%s  %s%s%s\n", bold, cyan, s.Name, reset, dim, s.ID, reset)
	fmt.Fprintf(c.out, "    %s%-12s%s %s:%d\n", cyan, "server", reset, s.ServerAddr, s.ServerPort)
	if s.AuthToken != "" {
		fmt.Fprintf(c.out, "    %s%-12s%s %s (%s)\n", cyan, "auth", reset, strings.Repeat("*", 8), s.AuthMethod)
	}
	if s.User != "" {
		fmt.Fprintf(c.out, "    %s%-12s%s %s\n", cyan, "user", reset, s.User)
	}
	fmt.Fprintf(c.out, "    %s%-12s%s %v\n", cyan, "tls", reset, s.TLSEnable)
	fmt.Fprintf(c.out, "    %s%-12s%s %s\n", cyan, "status", reset, runState(s.Running, s.PID))

	if len(s.Proxies) == 0 {
		fmt.Fprintf(c.out, "\n  %sNo proxies%s\n", dim, reset)
		return
	}
	fmt.Fprintf(c.out, "\n  %s%-10s %-16s %-6s %-22s %s%s\n", dim, "ID", "NAME", "TYPE", "LOCAL", "REMOTE", reset)
	fmt.Fprintf(c.out, "  %s%s%s\n", dim, sep+sep, reset)
	for _, p := range s.Proxies {
		fmt.Fprintf(c.out, "  %-10s %-16s %-6s %-22s %s\n", shortID(p.ID), p.Name, p.Type,
			fmt.Sprintf("%s:%d", p.LocalIP, p.LocalPort), proxyRemote(p))
	}
}

func proxyRemote(p ProxyRule) string {
	if isL4(p.Type) {
		if p.RemotePort == 0 {
			return "auto"
		}
		return ":" + strconv.Itoa(p.RemotePort)
	}
	remote := strings.Join(p.CustomDomains, ",")
	if p.Subdomain != "" {
		if remote != "" {
			remote += ","
		}
		remote += p.Subdomain + ".*"
	}
	return remote
}

func (c *cli) doShow(ctx context.Context, ref string) bool {
	s, err := c.resolveServer(ctx, ref)
	if err != nil {
		return c.fail(err)
	}
	c.printServer(s)
	return true
}

func (c *cli) doAdd(ctx context.Context, args []string) bool {
	if len(args) == 0 {
		return c.usage("add name=<name> addr=<host> port=<port> [token=..] [user=..] [tls=true]")
	}
	kv, err := parseKV(args)
	if err != nil {
		return c.fail(err)
	}
	var s ServerProfile
	if err := applyServerKV(&s, kv); err != nil {
		return c.fail(err)
	}
	id, err := c.client.CreateServer(ctx, s)
	if err != nil {
		return c.fail(err)
	}
	c.okf("Server %s created %s(%s)%s", s.Name, dim, id, reset)
	return true
}

func (c *cli) doEdit(ctx context.Context, ref string, args []string) bool {
	kv, err := parseKV(args)
	if err != nil {
		return c.fail(err)
	}
	s, err := c.resolveServer(ctx, ref)
	if err != nil {
		return c.fail(err)
	}
	profile := s.ServerProfile
	if err := applyServerKV(&profile, kv); err != nil {
		return c.fail(err)
	}
	if err := c.client.UpdateServer(ctx, s.ID, profile); err != nil {
		return c.fail(err)
	}
	c.okf("Saved")
	if s.Running {
		fmt.Fprintf(c.out, "  %sRun 'restart %s' to apply changes%s\n", dim, s.Name, reset)
	}
	return true
}

func (c *cli) doRemove(ctx context.Context, ref string) bool {
	s, err := c.resolveServer(ctx, ref)
	if err != nil {
		return c.fail(err)
	}
	if err := c.client.DeleteServer(ctx, s.ID); err != nil {
		return c.fail(err)
	}
	c.okf("Server %s deleted", s.Name)
	return true
}

// --- proxies ---

func (c *cli) doProxy(ctx context.Context, args []string) bool {
	const usage = "proxy add <server> key=value... | proxy edit <server> <proxy> key=value... | proxy rm <server> <proxy>"
	if len(args) < 2 {
		return c.usage(usage)
	}
	s, err := c.resolveServer(ctx, args[1])
	if err != nil {
		return c.fail(err)
	}

	switch args[0] {
	case "add":
		kv, err := parseKV(args[2:])
		if err != nil {
			return c.fail(err)
		}
		var p ProxyRule
		if err := applyProxyKV(&p, kv); err != nil {
			return c.fail(err)
		}
		id, err := c.client.CreateProxy(ctx, s.ID, p)
		if err != nil {
			return c.fail(err)
		}
		c.okf("Proxy %s added %s(%s)%s", p.Name, dim, id, reset)
	case "edit":
		if len(args) < 4 {
			return c.usage(usage)
		}
		existing, err := matchProxy(s.Proxies, args[2])
		if err != nil {
			return c.fail(err)
		}
		kv, err := parseKV(args[3:])
		if err != nil {
			return c.fail(err)
		}
		p := *existing
		if err := applyProxyKV(&p, kv); err != nil {
			return c.fail(err)
		}
		if err := c.client.UpdateProxy(ctx, s.ID, existing.ID, p); err != nil {
			return c.fail(err)
		}
		c.okf("Proxy %s saved", p.Name)
	case "rm", "delete":
		if len(args) != 3 {
			return c.usage(usage)
		}
		existing, err := matchProxy(s.Proxies, args[2])
		if err != nil {
			return c.fail(err)
		}
		if err := c.client.DeleteProxy(ctx, s.ID, existing.ID); err != nil {
			return c.fail(err)
		}
		c.okf("Proxy %s deleted", existing.Name)
	default:
		return c.usage(usage)
	}

	if s.Running {
		fmt.Fprintf(c.out, "  %sRun 'restart %s' to apply changes%s\n", dim, s.Name, reset)
	}
	return true
}

// --- process control ---

func (c *cli) doControl(ctx context.Context, ref, action string) bool {
	s, err := c.resolveServer(ctx, ref)
	if err != nil {
		return c.fail(err)
	}
	if err := c.client.Control(ctx, s.ID, action); err != nil {
		return c.fail(err)
	}
	st, err := c.client.Status(ctx, s.ID)
	if err != nil {
		return c.fail(err)
	}
	c.okf("%s: %s", s.Name, runState(st.Running, st.PID))
	return true
}

func (c *cli) doStatus(ctx context.Context, ref string) bool {
	s, err := c.resolveServer(ctx, ref)
	if err != nil {
		return c.fail(err)
	}
	st, err := c.client.Status(ctx, s.ID)
	if err != nil {
		return c.fail(err)
	}
	fmt.Fprintf(c.out, "  %-18s %s\n", s.Name, runState(st.Running, st.PID))
	return true
}

func (c *cli) doLogs(args []string) bool {
	var (
		ref    string
		follow bool
		lines  int
	)
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-f", "--follow":
			follow = true
		case "-n":
			if i+1 >= len(args) {
				return c.usage("logs <server> [-n lines] [-f]")
			}
			n, err := strconv.Atoi(args[i+1])
			if err != nil || n <= 0 {
				return c.usage("logs <server> [-n lines] [-f]")
			}
			lines = n
			i++
		default:
			ref = args[i]
		}
	}
	if ref == "" {
		return c.usage("logs <server> [-n lines] [-f]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cliTimeout)
	defer cancel()
	s, err := c.resolveServer(ctx, ref)
	if err != nil {
		return c.fail(err)
	}

	if !follow {
		logs, err := c.client.Logs(ctx, s.ID, lines)
		if err != nil {
			return c.fail(err)
		}
		if logs == "" {
			fmt.Fprintf(c.out, "  %sNo logs yet%s\n", dim, reset)
			return true
		}
		fmt.Fprintf(c.out, "  %sLogs of %s:%s\n", dim, s.Name, reset)
		fmt.Fprintf(c.out, "  %s%s%s\n", dim, sep, reset)
		fmt.Fprintln(c.out, strings.TrimSuffix(logs, "\n"))
		return true
	}

	fmt.Fprintf(c.out, "  %sFollowing %s, Ctrl-C to stop%s\n", dim, s.Name, reset)
	fmt.Fprintf(c.out, "  %s%s%s\n", dim, sep, reset)
	followCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	err = c.client.FollowLogs(followCtx, s.ID, func(chunk string) {
		fmt.Fprint(c.out, chunk)
	})
	if err != nil {
		return c.fail(err)
	}
	return true
}

func (c *cli) doConfig(ctx context.Context, ref string) bool {
	s, err := c.resolveServer(ctx, ref)
	if err != nil {
		return c.fail(err)
	}
	conf, err := c.client.Config(ctx, s.ID)
	if err != nil {
		return c.fail(err)
	}
	fmt.Fprint(c.out, conf)
	return true
}

// --- frpc binary ---

func (c *cli) doVersion(ctx context.Context) bool {
	v, err := c.client.FrpcVersion(ctx)
	if err != nil {
		return c.fail(err)
	}
	if !v.Installed {
		fmt.Fprintf(c.out, "  %s✗ frpc not installed.%s Run 'install' or 'upload <archive>'\n", red, reset)
		return true
	}
	version := v.Version
	if version == "" {
		version = "unknown"
	}
	fmt.Fprintf(c.out, "  %s%-16s%s %s\n", cyan, "frpc", reset, version)
	return true
}

func (c *cli) doLatest(ctx context.Context) bool {
	latest, err := c.client.FrpcLatest(ctx)
	if err != nil {
		return c.fail(err)
	}
	fmt.Fprintf(c.out, "  %s%-16s%s %s\n", cyan, "latest release", reset, latest)
	return true
}

func (c *cli) doInstall() bool {
	fmt.Fprintf(c.out, "  %sDownloading latest frpc...%s\n", yellow, reset)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	version, err := c.client.FrpcInstall(ctx)
	if err != nil {
		return c.fail(err)
	}
	c.okf("frpc installed %s", version)
	return true
}

func (c *cli) doUpload(path string) bool {
	fmt.Fprintf(c.out, "  %sUploading %s...%s\n", yellow, filepath.Base(path), reset)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	version, err := c.client.FrpcUpload(ctx, path)
	if err != nil {
		return c.fail(err)
	}
	c.okf("frpc installed %s", version)
	return true
}

// --- key=value parsing ---

// parseKV turns `key=value` arguments into a map. Keys are case-insensitive and
// surrounding quotes on values are dropped.
func parseKV(args []string) (map[string]string, error) {
	kv := make(map[string]string, len(args))
	for _, arg := range args {
		eq := strings.Index(arg, "=")
		if eq <= 0 {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		key := strings.ToLower(strings.TrimSpace(arg[:eq]))
		kv[key] = strings.Trim(strings.TrimSpace(arg[eq+1:]), "\"'")
	}
	return kv, nil
}

func parseBool(key, s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "yes", "on", "1":
		return true, nil
	case "false", "no", "off", "0", "":
		return false, nil
	}
	return false, invalid(key, "must be true or false")
}

func parsePort(key, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, invalid(key, "must be a number")
	}
	return n, nil
}

// splitHostPort accepts host or host:port; port is 0 when absent. An explicit
// port key wins over the port given here.
func splitHostPort(key, s string) (string, int, error) {
	i := strings.LastIndex(s, ":")
	if i < 0 || strings.HasSuffix(s, "]") {
		return s, 0, nil
	}
	port, err := parsePort(key, s[i+1:])
	if err != nil {
		return "", 0, err
	}
	return s[:i], port, nil
}

func applyServerKV(s *ServerProfile, kv map[string]string) error {
	for key, val := range kv {
		var err error
		switch key {
		case "name":
			s.Name = val
		case "addr", "server", "serveraddr":
			var port int
			s.ServerAddr, port, err = splitHostPort(key, val)
			if port != 0 && kv["port"] == "" && kv["serverport"] == "" {
				s.ServerPort = port
			}
		case "port", "serverport":
			s.ServerPort, err = parsePort(key, val)
		case "token", "authtoken":
			s.AuthToken = val
		case "method", "authmethod":
			s.AuthMethod = val
		case "user":
			s.User = val
		case "tls", "tlsenable":
			s.TLSEnable, err = parseBool(key, val)
		default:
			err = invalid(key, "unknown server field")
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func applyProxyKV(p *ProxyRule, kv map[string]string) error {
	for key, val := range kv {
		var err error
		switch key {
		case "name":
			p.Name = val
		case "type":
			p.Type = strings.ToLower(val)
		case "local", "localaddr":
			var port int
			p.LocalIP, port, err = splitHostPort(key, val)
			if port != 0 && kv["localport"] == "" && kv["lport"] == "" {
				p.LocalPort = port
			}
		case "localip", "ip":
			p.LocalIP = val
		case "localport", "lport":
			p.LocalPort, err = parsePort(key, val)
		case "remote", "remoteport", "rport":
			p.RemotePort, err = parsePort(key, val)
		case "domains", "domain", "customdomains":
			p.CustomDomains = nil
			for _, d := range strings.Split(val, ",") {
				if d = strings.TrimSpace(d); d != "" {
					p.CustomDomains = append(p.CustomDomains, d)
				}
			}
		case "subdomain":
			p.Subdomain = val
		default:
			err = invalid(key, "unknown proxy field")
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *cli) printHelp() {
	w := c.out
	fmt.Fprintf(w, "  %s%sSession%s\n", bold, cyan, reset)
	fmt.Fprintf(w, "    %ssetup%s     Set the admin password on a fresh panel\n", cyan, reset)
	fmt.Fprintf(w, "    %slogin%s     Log in %s(token is kept for this panel address)%s\n", cyan, reset, dim, reset)
	fmt.Fprintf(w, "    %slogout%s    End the session\n\n", cyan, reset)
	fmt.Fprintf(w, "  %s%sServers%s\n", bold, cyan, reset)
	fmt.Fprintf(w, "    %sls%s        List servers and their frpc state\n", cyan, reset)
	fmt.Fprintf(w, "    %sshow%s      Server details and proxies     %s(show home)%s\n", cyan, reset, dim, reset)
	fmt.Fprintf(w, "    %sadd%s       Create a server                %s(add name=home addr=frps.example.com:7000 token=s3cret)%s\n", cyan, reset, dim, reset)
	fmt.Fprintf(w, "    %sedit%s      Change server fields           %s(edit home tls=true)%s\n", cyan, reset, dim, reset)
	fmt.Fprintf(w, "    %srm%s        Delete a server and stop its frpc\n\n", cyan, reset)
	fmt.Fprintf(w, "  %s%sProxies%s\n", bold, cyan, reset)
	fmt.Fprintf(w, "    %sproxy add%s   %s(proxy add home name=ssh type=tcp local=127.0.0.1:22 remote=6000)%s\n", cyan, reset, dim, reset)
	fmt.Fprintf(w, "    %sproxy edit%s  %s(proxy edit home ssh remote=6022)%s\n", cyan, reset, dim, reset)
	fmt.Fprintf(w, "    %sproxy rm%s    %s(proxy rm home ssh)%s\n\n", cyan, reset, dim, reset)
	fmt.Fprintf(w, "  %s%sfrpc control%s\n", bold, cyan, reset)
	fmt.Fprintf(w, "    %sstart%s     Start frpc for a server\n", cyan, reset)
	fmt.Fprintf(w, "    %sstop%s      Stop frpc\n", cyan, reset)
	fmt.Fprintf(w, "    %srestart%s   Regenerate config and restart frpc\n", cyan, reset)
	fmt.Fprintf(w, "    %sstatus%s    Process state                  %s(status home)%s\n", cyan, reset, dim, reset)
	fmt.Fprintf(w, "    %slogs%s      Show frpc output               %s(logs home -n 50, logs home -f)%s\n", cyan, reset, dim, reset)
	fmt.Fprintf(w, "    %sconfig%s    Print the generated frpc.toml\n\n", cyan, reset)
	fmt.Fprintf(w, "  %s%sfrpc binary%s\n", bold, cyan, reset)
	fmt.Fprintf(w, "    %sversion%s   Installed frpc version\n", cyan, reset)
	fmt.Fprintf(w, "    %slatest%s    Latest release on GitHub\n", cyan, reset)
	fmt.Fprintf(w, "    %sinstall%s   Download and install the latest release\n", cyan, reset)
	fmt.Fprintf(w, "    %supload%s    Install from a local release archive\n\n", cyan, reset)
	fmt.Fprintf(w, "    %sclear%s     Clear screen\n", cyan, reset)
	fmt.Fprintf(w, "    %sexit%s      Exit CLI (frpc keeps running on the panel)\n", cyan, reset)
}
