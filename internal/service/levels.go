package service

// Level is a position in the fixed four-step approval chain. Level 0 is the
// employee starting point, not an approval level; level 4 is terminal.
type Level int

const (
	LevelEmployee Level = 0
	LevelManager  Level = 1
	LevelHRBP     Level = 2
	LevelLearning Level = 3
	LevelCHRO     Level = 4
)

// TerminalLevel is the last level in the chain; approving it (or exhausting
// the chain before it) finalizes the request.
const TerminalLevel = LevelCHRO

// Organizational role names as stored in the directory.
const (
	RoleManager  = "MANAGER"
	RoleHRBP     = "HRBP"
	RoleLearning = "LND"
	RoleCHRO     = "CHRO"
	RoleAdmin    = "ADMIN"
)

// roleLevels and levelRoles form the immutable role <-> level mapping.
// Admin aliases to the terminal level. Nothing writes these at runtime.
var roleLevels = map[string]Level{
	RoleManager:  LevelManager,
	RoleHRBP:     LevelHRBP,
	RoleLearning: LevelLearning,
	RoleCHRO:     LevelCHRO,
	RoleAdmin:    LevelCHRO,
}

var levelRoles = [TerminalLevel + 1]string{
	LevelManager:  RoleManager,
	LevelHRBP:     RoleHRBP,
	LevelLearning: RoleLearning,
	LevelCHRO:     RoleCHRO,
}

// LevelForRole maps a role to its approval level. Unrecognized roles map to
// level 0 (no elevation).
func LevelForRole(role string) Level {
	return roleLevels[role]
}

// RoleForLevel returns the role that approves at the given level, or ""
// for level 0 and out-of-range values.
func RoleForLevel(level Level) string {
	if level < LevelEmployee || level > TerminalLevel {
		return ""
	}
	return levelRoles[level]
}

// EffectiveLevel is the highest approval level among the given roles, or 0
// when the set is empty. Adding a role never lowers the result.
func EffectiveLevel(roles []string) Level {
	level := LevelEmployee
	for _, role := range roles {
		if l := LevelForRole(role); l > level {
			level = l
		}
	}
	return level
}
