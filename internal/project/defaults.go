package project

// DefaultScript is the PRD body a new project starts with.
const DefaultScript = "## Product Overview\n" +
	"One-liner: Ship a task manager MVP fast with a Go server, HTMX and SQLite.\n" +
	"Audience: Indie hackers who want working CRUD + auth quickly.\n" +
	"KPIs: TTFA <= 5 min; p95 /export < 200ms; coverage >= 70%.\n\n" +
	"## Purpose\n" +
	"Solve context-switch + boilerplate fatigue. Provide a minimal, shippable core.\n\n" +
	"## Target Audience\n" +
	"Solo builders, very small teams; non-enterprise constraints.\n\n" +
	"## Expected Outcomes\n" +
	"- Generate four artifacts for Cursor: PRD.md, rules, epics.json, tickets.json.\n" +
	"- Clear AC drives codegen; zero SPA overhead; simple deploy.\n\n" +
	"## Design Details\n" +
	"### Architectural Overview\n" +
	"Server-rendered HTMX; SQLite; DaisyUI.\n\n" +
	"### Data Structures & Algorithms\n" +
	"Scene: {id,title,goal,risk} ; Shot: {id,epic_id,title,status,priority}.\n\n" +
	"### System Interfaces\n" +
	"GET /, POST /panel, POST /export.\n\n" +
	"### User Interfaces\n" +
	"Tabs: Script, Rules, Scenes, Shots. Export button.\n\n" +
	"## Testing Plan\n" +
	"- Unit tests; golden tests for artifacts; basic route tests.\n\n" +
	"## Constraints\n" +
	"- Stack: Go + HTMX + SQLite. No paid services. Single VPS deploy.\n\n" +
	"## Acceptance Criteria\n" +
	"- CRUD endpoints return correct status; validations enforced.\n" +
	"- Auth (later): signup/login/logout; reset via token (15 min).\n" +
	"- /export returns artifacts; performance meets KPI.\n"

// DefaultRules is the rules file a new project starts with.
const DefaultRules = "# Cursor Rules\n" +
	"- Use Go 1.24, net/http, HTMX, SQLite.\n" +
	"- Prefer server-side HTML over heavy SPA JS.\n" +
	"- Run gofmt and go vet; exported identifiers documented.\n" +
	"- Wrap errors with context using %w.\n" +
	"- Write table-driven tests with httptest.\n" +
	"- Never commit secrets; use .env.example.\n"

// DefaultScenes returns a fresh copy of the starter scene list.
func DefaultScenes() []Scene {
	return []Scene{
		{ID: "E1", Title: "Core CRUD", Goal: "Ship item CRUD end-to-end", Risk: "data loss"},
	}
}

// DefaultShots returns a fresh copy of the starter shot list.
func DefaultShots() []Shot {
	return []Shot{
		{ID: "T1", SceneID: "E1", Title: "Build items table", Status: StatusTodo, Priority: PriorityHigh},
		{ID: "T2", SceneID: "E1", Title: "CRUD handlers", Status: StatusInProgress, Priority: PriorityHigh},
	}
}

// DefaultPacks enables only the core pack.
func DefaultPacks() Packs {
	return Packs{Core: true}
}

// Default returns the starter project.
func Default() Snapshot {
	return Snapshot{
		Script: DefaultScript,
		Rules:  DefaultRules,
		Scenes: DefaultScenes(),
		Shots:  DefaultShots(),
		Packs:  DefaultPacks(),
	}
}
