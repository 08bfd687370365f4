package terrain

// Kind is the closed set of tile variants. Per-kind constants live in kindDefs.
type Kind uint8

const (
	KindAir Kind = iota
	KindDirt
	KindStone
	KindWall
	KindFloor
	KindRubble
	KindTunnel
	KindNest
	kindCount
)

type BuildMaterial uint8

const (
	Wood BuildMaterial = iota
	StoneBlock
	Metal
)

var materialHP = [...]uint16{
	Wood:       50,
	StoneBlock: 150,
	Metal:      300,
}

func (m BuildMaterial) BaseHP() uint16 {
	if int(m) >= len(materialHP) {
		return 0
	}
	return materialHP[m]
}

func (m BuildMaterial) String() string {
	switch m {
	case Wood:
		return "WOOD"
	case StoneBlock:
		return "STONE"
	case Metal:
		return "METAL"
	}
	return "UNKNOWN"
}

type kindDef struct {
	name         string
	glyph        byte
	passable     bool
	destructible bool
}

var kindDefs = [kindCount]kindDef{
	KindAir:    {name: "AIR", glyph: '.', passable: true},
	KindDirt:   {name: "DIRT", glyph: ',', destructible: true},
	KindStone:  {name: "STONE", glyph: '#', destructible: true},
	KindWall:   {name: "WALL", glyph: 'H', destructible: true},
	KindFloor:  {name: "FLOOR", glyph: '_', destructible: true},
	KindRubble: {name: "RUBBLE", glyph: '%', passable: true},
	KindTunnel: {name: "TUNNEL", glyph: 'o', passable: true, destructible: true},
	KindNest:   {name: "NEST", glyph: 'O', passable: true, destructible: true},
}

func (k Kind) String() string {
	if k >= kindCount {
		return "UNKNOWN"
	}
	return kindDefs[k].name
}

// Tile is one grid cell of terrain. HP is meaningful only for destructible kinds.
type Tile struct {
	Kind     Kind          `json:"kind"`
	HP       uint16        `json:"hp,omitempty"`
	MaxHP    uint16        `json:"max_hp,omitempty"`
	Material BuildMaterial `json:"material,omitempty"`
}

func Air() Tile    { return Tile{Kind: KindAir} }
func Rubble() Tile { return Tile{Kind: KindRubble} }

func Dirt(hp uint16) Tile  { return Tile{Kind: KindDirt, HP: hp, MaxHP: hp} }
func Stone(hp uint16) Tile { return Tile{Kind: KindStone, HP: hp, MaxHP: hp} }

func Wall(m BuildMaterial) Tile {
	hp := m.BaseHP()
	return Tile{Kind: KindWall, HP: hp, MaxHP: hp, Material: m}
}

func Floor(m BuildMaterial) Tile {
	hp := m.BaseHP()
	return Tile{Kind: KindFloor, HP: hp, MaxHP: hp, Material: m}
}

func Tunnel(hp uint16) Tile { return Tile{Kind: KindTunnel, HP: hp, MaxHP: hp} }
func Nest(hp uint16) Tile   { return Tile{Kind: KindNest, HP: hp, MaxHP: hp} }

func (t Tile) Passable() bool     { return t.Kind < kindCount && kindDefs[t.Kind].passable }
func (t Tile) Destructible() bool { return t.Kind < kindCount && kindDefs[t.Kind].destructible }

func (t Tile) Glyph() byte {
	if t.Kind >= kindCount {
		return '?'
	}
	return kindDefs[t.Kind].glyph
}

// Durability returns the tile's current hit points, if it has any.
func (t Tile) Durability() (uint16, bool) {
	if !t.Destructible() {
		return 0, false
	}
	return t.HP, true
}

// damage applies amount and reports whether the tile collapsed into rubble.
func (t *Tile) damage(amount uint16) (destroyed bool, ok bool) {
	if !t.Destructible() {
		return false, false
	}
	if t.HP <= amount {
		*t = Rubble()
		return true, true
	}
	t.HP -= amount
	return false, true
}
