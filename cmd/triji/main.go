package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/gauciv/triji-app-admin-dashboard/internal/auth"
	"github.com/gauciv/triji-app-admin-dashboard/internal/config"
	"github.com/gauciv/triji-app-admin-dashboard/internal/engine"
	"github.com/gauciv/triji-app-admin-dashboard/pkg/console"
	"github.com/gauciv/triji-app-admin-dashboard/pkg/release"
	"github.com/gauciv/triji-app-admin-dashboard/pkg/schema"
	"github.com/gauciv/triji-app-admin-dashboard/pkg/sdk"
	"github.com/gauciv/triji-app-admin-dashboard/pkg/session"
	"github.com/gauciv/triji-app-admin-dashboard/pkg/store"
)

func main() {
	godotenv.Load()
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		return
	}

	cfg := config.Load()
	app := setup(cfg)
	defer app.close()

	command := strings.ToUpper(flag.Arg(0))
	args := flag.Args()[1:]

	switch command {
	case "LOGIN":
		if len(args) < 2 {
			log.Fatal("Usage: triji LOGIN <email> <password>")
		}
		if err := app.sess.SignIn(context.Background(), args[0], args[1]); err != nil {
			log.Fatalf("Sign-in failed: %v", err)
		}
		id := app.sess.Current()
		fmt.Printf("Signed in as %s\n", id.DisplayName)

	case "LOGOUT":
		if err := app.sess.SignOut(context.Background()); err != nil {
			log.Fatal(err)
		}
		fmt.Println("Signed out")

	case "WHOAMI":
		id := app.requireIdentity()
		fmt.Printf("%s <%s> [%s]\n", id.DisplayName, id.Email, app.role())

	case "DASHBOARD":
		app.dashboard()

	case "TASKS":
		app.tasks(args)

	case "TASK-ADD":
		if len(args) < 2 {
			log.Fatal("Usage: triji TASK-ADD <title> <description> [subject] [deadline RFC3339]")
		}
		t := schema.Task{Title: args[0], Description: args[1]}
		if len(args) > 2 {
			t.Subject = args[2]
		}
		if len(args) > 3 {
			deadline, err := time.Parse(time.RFC3339, args[3])
			if err != nil {
				log.Fatalf("Bad deadline: %v", err)
			}
			t.Deadline = deadline
		}
		screen := console.NewTasksScreen(app.bound(), app.gateway())
		app.report(screen.Add(t))

	case "TASK-STATUS":
		if len(args) < 2 {
			log.Fatal("Usage: triji TASK-STATUS <id> <Pending|In Progress|Completed>")
		}
		screen := console.NewTasksScreen(app.bound(), app.gateway())
		app.report(screen.SetStatus(args[0], schema.TaskStatus(args[1])))

	case "TASK-DEL":
		if len(args) < 1 {
			log.Fatal("Usage: triji TASK-DEL <id>")
		}
		screen := console.NewTasksScreen(app.bound(), app.gateway())
		app.report(screen.Delete(args[0]))

	case "ANNOUNCEMENTS":
		app.announcements(args)

	case "ANNOUNCE":
		if len(args) < 2 {
			log.Fatal("Usage: triji ANNOUNCE <title> <content> [type] [expires RFC3339]")
		}
		a := schema.Announcement{Title: args[0], Content: args[1], Type: schema.AnnouncementGeneral}
		if len(args) > 2 {
			a.Type = schema.AnnouncementType(args[2])
		}
		if len(args) > 3 {
			expires, err := time.Parse(time.RFC3339, args[3])
			if err != nil {
				log.Fatalf("Bad expiry: %v", err)
			}
			a.ExpiresAt = expires
		}
		screen := console.NewAnnouncementsScreen(app.bound(), app.gateway(), app.viewer())
		app.report(screen.Post(a))

	case "ANNOUNCE-DEL":
		if len(args) < 1 {
			log.Fatal("Usage: triji ANNOUNCE-DEL <id>")
		}
		screen := console.NewAnnouncementsScreen(app.bound(), app.gateway(), app.viewer())
		app.report(screen.Delete(schema.Announcement{ID: args[0]}))

	case "REPORTS":
		app.reports(args)

	case "REPORT-ADVANCE":
		if len(args) < 1 {
			log.Fatal("Usage: triji REPORT-ADVANCE <id>")
		}
		app.advanceReport(args[0])

	case "USERS":
		app.users(args)

	case "USER-ROLE":
		if len(args) < 2 {
			log.Fatal("Usage: triji USER-ROLE <id> <student|officer|admin>")
		}
		app.changeRole(args[0], schema.Role(args[1]))

	case "SUBJECTS":
		app.subjects()

	case "SUBJECT-SET":
		if len(args) < 2 {
			log.Fatal("Usage: triji SUBJECT-SET <code> <name> [description]")
		}
		subject := schema.Subject{Code: args[0], Name: args[1]}
		if len(args) > 2 {
			subject.Description = args[2]
		}
		screen := console.NewSubjectsScreen(app.bound(), app.bound(), app.gateway())
		app.report(screen.Save(subject))

	case "SUBJECT-DEL":
		if len(args) < 1 {
			log.Fatal("Usage: triji SUBJECT-DEL <id>")
		}
		screen := console.NewSubjectsScreen(app.bound(), app.bound(), app.gateway())
		app.report(screen.Delete(args[0]))

	case "WALL":
		app.wall()

	case "WALL-POST":
		if len(args) < 1 {
			log.Fatal("Usage: triji WALL-POST <content> [--anon]")
		}
		anonymous := len(args) > 1 && args[1] == "--anon"
		screen := console.NewFreedomWallScreen(app.bound(), app.gateway(), app.viewer())
		app.report(screen.Publish(args[0], anonymous))

	case "WALL-DEL":
		if len(args) < 1 {
			log.Fatal("Usage: triji WALL-DEL <id>")
		}
		screen := console.NewFreedomWallScreen(app.bound(), app.gateway(), app.viewer())
		app.report(screen.Delete(schema.FreedomWallPost{ID: args[0]}))

	case "EXPORT":
		if len(args) < 1 {
			log.Fatal("Usage: triji EXPORT <dir>")
		}
		app.export(args[0])

	case "RELEASE":
		app.release(cfg)

	default:
		printUsage()
	}
}

func printUsage() {
	fmt.Println(`Triji Admin Console

Usage: triji <command> [args]

Session:
  LOGIN <email> <password>      Sign in
  LOGOUT                        Sign out
  WHOAMI                        Show the current identity and role

Screens:
  DASHBOARD                     Stats, pending reports and recent activity
  TASKS [status] [search]       List tasks
  TASK-ADD <title> <desc> [subject] [deadline]
  TASK-STATUS <id> <status>
  TASK-DEL <id>
  ANNOUNCEMENTS [type] [Active|Expired]
  ANNOUNCE <title> <content> [type] [expires]
  ANNOUNCE-DEL <id>
  REPORTS [status]
  REPORT-ADVANCE <id>
  USERS [role] [search]
  USER-ROLE <id> <role>
  SUBJECTS
  SUBJECT-SET <code> <name> [description]
  SUBJECT-DEL <id>
  WALL
  WALL-POST <content> [--anon]
  WALL-DEL <id>

Maintenance:
  EXPORT <dir>                  Copy every readable collection to a data dir
  RELEASE                       Show the latest release info`)
}

// app wires the document store, session and gateway for one invocation.
type app struct {
	doc    store.DocumentStore
	binder store.Binder
	sess   *session.Store
	eng    *engine.Engine
}

func setup(cfg config.Config) *app {
	doc, binder, err := sdk.Open(cfg.DataDir)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}

	a := &app{doc: doc, binder: binder}

	var provider session.IdentityProvider
	switch s := doc.(type) {
	case *sdk.Client:
		provider = s
	case *engine.Engine:
		a.eng = s
		provider = &auth.Provider{
			Engine:   s,
			Secret:   cfg.JWTSecret,
			Issuer:   cfg.JWTIssuer,
			TokenTTL: cfg.AccessTokenTTL,
		}
	default:
		log.Fatalf("unsupported store %T", doc)
	}

	os.MkdirAll(cfg.StateDir, 0o700)
	var stateKey []byte
	if raw, err := hex.DecodeString(cfg.StateKey); err == nil && len(raw) == 32 {
		stateKey = raw
	}

	a.sess = session.New(provider, session.Options{
		Timeout:      cfg.SessionTimeout,
		PollInterval: cfg.PollInterval,
		StatePath:    filepath.Join(cfg.StateDir, "session.json"),
		StateKey:     stateKey,
	})

	// Resume a persisted session. Expired state was already dropped by
	// session.New.
	if token := a.sess.Token(); token != "" && a.sess.Current() == nil {
		switch p := provider.(type) {
		case *sdk.Client:
			if id, err := auth.DecodeIdentity(token); err == nil {
				p.SetToken(token, id)
			}
		case *auth.Provider:
			p.Resume(token)
		}
	}
	a.sess.Start()
	a.sess.Touch()
	return a
}

func (a *app) close() {
	a.sess.Close()
	if a.eng != nil {
		a.eng.Close()
		a.eng.Wait()
	}
}

func (a *app) requireIdentity() store.Identity {
	id := a.sess.Current()
	if id == nil {
		log.Fatal("Not signed in. Run: triji LOGIN <email> <password>")
	}
	return *id
}

// bound returns the store scoped to the signed-in actor. The remote client
// is already actor-scoped by its bearer token.
func (a *app) bound() store.DocumentStore {
	id := a.requireIdentity()
	if a.binder != nil {
		return a.binder.Bind(id)
	}
	return a.doc
}

func (a *app) role() schema.Role {
	id := a.requireIdentity()
	snap, err := a.bound().GetAll(store.NewQuery(store.CollectionUsers))
	if err != nil {
		return schema.RoleStudent
	}
	for _, d := range snap {
		if d.ID == id.ID {
			return schema.UserProfileFromDocument(d).Role
		}
	}
	return schema.RoleStudent
}

func (a *app) viewer() console.Viewer {
	return console.Viewer{Identity: a.requireIdentity(), Role: a.role()}
}

func (a *app) gateway() *console.Gateway {
	return console.NewGateway(a.bound(), a.viewer())
}

func (a *app) report(o console.Outcome) {
	if !o.OK {
		log.Fatalf("Rejected (%s): %s", o.Kind, o.Message)
	}
	fmt.Println("OK")
}

func waitReady(state func() (console.ScreenState, error)) {
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		st, err := state()
		switch st {
		case console.StateReady:
			return
		case console.StateError:
			log.Fatalf("Screen failed: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}
	log.Fatal("Timed out waiting for data")
}

func (a *app) dashboard() {
	screen := console.NewDashboardScreen(a.bound())
	screen.Attach()
	defer screen.Close()
	waitReady(screen.State)

	stats := screen.Stats()
	fmt.Printf("Tasks: %d  Announcements: %d  Pending reports: %d  Users: %d\n",
		stats.Tasks, stats.Announcements, stats.PendingReports, stats.Users)
	fmt.Println("Recent activity:")
	for _, item := range screen.Recent() {
		fmt.Printf("  [%s] %s by %s (%s)\n", item.Kind, item.Title, item.Label, item.CreatedAt)
	}
}

func (a *app) tasks(args []string) {
	screen := console.NewTasksScreen(a.bound(), a.gateway())
	screen.Attach()
	defer screen.Close()
	waitReady(screen.State)

	if len(args) > 0 {
		screen.SetStatusFilter(args[0])
	}
	if len(args) > 1 {
		screen.SetSearch(args[1])
	}
	for _, t := range screen.Tasks() {
		fmt.Printf("%s  [%-11s] %s", t.ID, t.Status, t.Title)
		if t.Subject != "" {
			fmt.Printf(" (%s)", t.Subject)
		}
		if !t.Deadline.IsZero() {
			fmt.Printf(" due %s", t.Deadline.Format("2006-01-02"))
		}
		fmt.Println()
	}
}

func (a *app) announcements(args []string) {
	screen := console.NewAnnouncementsScreen(a.bound(), a.gateway(), a.viewer())
	screen.Attach()
	defer screen.Close()
	waitReady(screen.State)

	if len(args) > 0 {
		screen.SetTypeFilter(args[0])
	}
	if len(args) > 1 {
		screen.SetExpiryFilter(args[1])
	}
	for _, an := range screen.Announcements() {
		expiry := "never expires"
		if !an.ExpiresAt.IsZero() {
			expiry = "expires " + an.ExpiresAt.Format(time.RFC3339)
		}
		fmt.Printf("%s  [%s] %s by %s (%s)\n", an.ID, an.Type, an.Title, an.AuthorName, expiry)
	}
}

func (a *app) reports(args []string) {
	screen := console.NewReportsScreen(a.bound(), a.gateway(), a.viewer())
	screen.Attach()
	defer screen.Close()
	waitReady(screen.State)

	if len(args) > 0 {
		screen.SetStatusFilter(args[0])
	}
	fmt.Printf("Pending: %d\n", screen.PendingCount())
	for _, r := range screen.Reports() {
		fmt.Printf("%s  [%-9s] %s: %s\n", r.ID, r.Status, r.ReportType, r.Description)
	}
}

func (a *app) advanceReport(id string) {
	screen := console.NewReportsScreen(a.bound(), a.gateway(), a.viewer())
	screen.Attach()
	defer screen.Close()
	waitReady(screen.State)

	for _, r := range screen.Reports() {
		if r.ID == id {
			a.report(screen.Advance(r))
			return
		}
	}
	log.Fatalf("No report %s", id)
}

func (a *app) users(args []string) {
	screen := console.NewUsersScreen(a.bound(), a.gateway(), a.viewer())
	screen.Attach()
	defer screen.Close()
	waitReady(screen.State)

	if len(args) > 0 {
		screen.SetRoleFilter(args[0])
	}
	if len(args) > 1 {
		screen.SetSearch(args[1])
	}
	counts := screen.Counts()
	fmt.Printf("Students: %d  Officers: %d  Admins: %d\n", counts.Students, counts.Officers, counts.Admins)
	for _, u := range screen.Users() {
		fmt.Printf("%s  [%-7s] %s <%s>\n", u.ID, u.Role, u.FullName(), u.Email)
	}
}

func (a *app) changeRole(id string, to schema.Role) {
	screen := console.NewUsersScreen(a.bound(), a.gateway(), a.viewer())
	screen.Attach()
	defer screen.Close()
	waitReady(screen.State)

	for _, u := range screen.Users() {
		if u.ID == id {
			if o := screen.StageRoleChange(u, to); !o.OK {
				a.report(o)
			}
			a.report(screen.ConfirmRoleChange())
			return
		}
	}
	log.Fatalf("No user %s", id)
}

func (a *app) subjects() {
	screen := console.NewSubjectsScreen(a.bound(), a.bound(), a.gateway())
	screen.Attach()
	defer screen.Close()
	waitReady(screen.State)

	for _, s := range screen.Subjects() {
		fmt.Printf("%s  %-8s %s\n", s.ID, s.Code, s.Name)
	}
}

func (a *app) wall() {
	screen := console.NewFreedomWallScreen(a.bound(), a.gateway(), a.viewer())
	screen.Attach()
	defer screen.Close()
	waitReady(screen.State)

	for _, p := range screen.Posts() {
		fmt.Printf("%s  %s: %s\n", p.ID, p.DisplayName(), p.Content)
	}
}

func (a *app) export(dir string) {
	persister, err := engine.NewPersistence(dir)
	if err != nil {
		log.Fatalf("Failed to open export dir: %v", err)
	}
	dst := engine.New(nil, persister)
	if err := engine.Migrate(a.bound(), dst); err != nil {
		log.Fatalf("Export failed: %v", err)
	}
	dst.Close()
	dst.Wait()
	fmt.Printf("Exported to %s\n", dir)
}

func (a *app) release(cfg config.Config) {
	feed := cfg.ReleaseFeedURL
	if feed == "" {
		feed = release.FeedFor("gauciv/triji-app")
	}
	client := &release.Client{FeedURL: feed}
	info, err := client.Latest(context.Background())
	for _, line := range releaseLines(info, err, release.PageFor("gauciv/triji-app")) {
		fmt.Println(line)
	}
}

// releaseLines renders the RELEASE command output. A feed failure is not a
// hard failure: the command degrades to pointing at the releases page.
func releaseLines(info release.Info, err error, page string) []string {
	if err != nil {
		reason := "release feed unreachable"
		switch {
		case errors.Is(err, release.ErrNoReleases):
			reason = "no releases published yet"
		case errors.Is(err, release.ErrRateLimit):
			reason = "release feed rate limited"
		}
		return []string{
			"No release information available (" + reason + ").",
			"Download the latest build at " + page,
		}
	}
	lines := []string{fmt.Sprintf("Latest release: %s (%s)", info.Version, info.PublishedAt.Format("2006-01-02"))}
	for _, note := range info.Notes {
		lines = append(lines, "  - "+note)
	}
	return lines
}
