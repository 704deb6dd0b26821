package game

type Faction string

const (
	FactionMafia   Faction = "MAFIA"
	FactionVillage Faction = "VILLAGE"
)

// EvaluateWin decides the match outcome from the alive roster. Village wins
// once no mafia remain; mafia win at parity or better (ties favor mafia).
// Returns false while the game is still undecided.
func EvaluateWin(players []Player) (Faction, bool) {
	var aliveMafia, aliveOthers int
	for _, p := range players {
		if !p.Alive {
			continue
		}
		if p.Role == RoleMafia {
			aliveMafia++
		} else {
			aliveOthers++
		}
	}

	if aliveMafia == 0 {
		return FactionVillage, true
	}
	if aliveMafia >= aliveOthers {
		return FactionMafia, true
	}
	return "", false
}
