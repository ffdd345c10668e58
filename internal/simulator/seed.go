package simulator

import (
	"context"
	"fmt"

	"agent_office/internal/domain"
)

type SeedStore interface {
	UpsertDepartment(ctx context.Context, d domain.Department) error
	UpsertAgent(ctx context.Context, a domain.Agent) error
}

var demoDepartments = []domain.Department{
	{ID: "planning", Name: "Planning", Icon: "🗂", Color: "#2e4053", SortOrder: 1},
	{ID: "dev", Name: "Development", Icon: "💻", Color: "#1b4f72", SortOrder: 2},
	{ID: "design", Name: "Design", Icon: "🎨", Color: "#4a235a", SortOrder: 3},
	{ID: "qa", Name: "Quality", Icon: "🔍", Color: "#0e6251", SortOrder: 4},
	{ID: "ops", Name: "Operations", Icon: "🛠", Color: "#784212", SortOrder: 5},
}

var demoAgents = []domain.Agent{
	{ID: "ada", Name: "Ada", DepartmentID: "planning", Role: "lead", SpriteIndex: 1, AvatarEmoji: "🦉"},
	{ID: "bo", Name: "Bo", DepartmentID: "planning", Role: "analyst", SpriteIndex: 2, AvatarEmoji: "🐧"},
	{ID: "cy", Name: "Cy", DepartmentID: "dev", Role: "lead", SpriteIndex: 3, AvatarEmoji: "🦊"},
	{ID: "dee", Name: "Dee", DepartmentID: "dev", Role: "engineer", SpriteIndex: 4, AvatarEmoji: "🐼"},
	{ID: "eli", Name: "Eli", DepartmentID: "dev", Role: "engineer", SpriteIndex: 1, AvatarEmoji: "🐨"},
	{ID: "fay", Name: "Fay", DepartmentID: "design", Role: "designer", SpriteIndex: 2, AvatarEmoji: "🦋"},
	{ID: "gus", Name: "Gus", DepartmentID: "qa", Role: "tester", SpriteIndex: 3, AvatarEmoji: "🐢"},
	{ID: "hal", Name: "Hal", DepartmentID: "qa", Role: "tester", SpriteIndex: 4, AvatarEmoji: "🐙"},
	{ID: "ivy", Name: "Ivy", DepartmentID: "ops", Role: "sre", SpriteIndex: 1, AvatarEmoji: "🦔"},
}

// Seed writes the demo departments and agents. It is idempotent and resets
// seeded agents to idle.
func Seed(ctx context.Context, store SeedStore) error {
	for _, d := range demoDepartments {
		if err := store.UpsertDepartment(ctx, d); err != nil {
			return fmt.Errorf("seed department %s: %w", d.ID, err)
		}
	}
	for _, a := range demoAgents {
		a.Status = domain.AgentStatusIdle
		if err := store.UpsertAgent(ctx, a); err != nil {
			return fmt.Errorf("seed agent %s: %w", a.ID, err)
		}
	}
	return nil
}
