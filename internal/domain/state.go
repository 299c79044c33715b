package domain

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// State is a Mexican federal entity. The zero value is not a valid state.
type State uint8

// States in INEGI order; the numeric value equals the INEGI entity key.
const (
	Aguascalientes State = iota + 1
	BajaCalifornia
	BajaCaliforniaSur
	Campeche
	Coahuila
	Colima
	Chiapas
	Chihuahua
	CiudadDeMexico
	Durango
	Guanajuato
	Guerrero
	Hidalgo
	Jalisco
	Mexico
	Michoacan
	Morelos
	Nayarit
	NuevoLeon
	Oaxaca
	Puebla
	Queretaro
	QuintanaRoo
	SanLuisPotosi
	Sinaloa
	Sonora
	Tabasco
	Tamaulipas
	Tlaxcala
	Veracruz
	Yucatan
	Zacatecas
)

type stateInfo struct {
	code    string
	name    string
	aliases []string
}

var stateTable = [...]stateInfo{
	Aguascalientes:    {code: "AGS", name: "Aguascalientes"},
	BajaCalifornia:    {code: "BC", name: "Baja California"},
	BajaCaliforniaSur: {code: "BCS", name: "Baja California Sur"},
	Campeche:          {code: "CAMP", name: "Campeche"},
	Coahuila:          {code: "COAH", name: "Coahuila", aliases: []string{"coahuila de zaragoza"}},
	Colima:            {code: "COL", name: "Colima"},
	Chiapas:           {code: "CHIS", name: "Chiapas"},
	Chihuahua:         {code: "CHIH", name: "Chihuahua"},
	CiudadDeMexico:    {code: "CDMX", name: "Ciudad de México", aliases: []string{"distrito federal", "df", "cd. de mexico"}},
	Durango:           {code: "DGO", name: "Durango"},
	Guanajuato:        {code: "GTO", name: "Guanajuato"},
	Guerrero:          {code: "GRO", name: "Guerrero"},
	Hidalgo:           {code: "HGO", name: "Hidalgo"},
	Jalisco:           {code: "JAL", name: "Jalisco"},
	Mexico:            {code: "MEX", name: "México", aliases: []string{"estado de mexico", "edo. de mexico", "edomex"}},
	Michoacan:         {code: "MICH", name: "Michoacán", aliases: []string{"michoacan de ocampo"}},
	Morelos:           {code: "MOR", name: "Morelos"},
	Nayarit:           {code: "NAY", name: "Nayarit"},
	NuevoLeon:         {code: "NL", name: "Nuevo León"},
	Oaxaca:            {code: "OAX", name: "Oaxaca"},
	Puebla:            {code: "PUE", name: "Puebla"},
	Queretaro:         {code: "QRO", name: "Querétaro", aliases: []string{"queretaro de arteaga"}},
	QuintanaRoo:       {code: "QROO", name: "Quintana Roo"},
	SanLuisPotosi:     {code: "SLP", name: "San Luis Potosí"},
	Sinaloa:           {code: "SIN", name: "Sinaloa"},
	Sonora:            {code: "SON", name: "Sonora"},
	Tabasco:           {code: "TAB", name: "Tabasco"},
	Tamaulipas:        {code: "TAMS", name: "Tamaulipas"},
	Tlaxcala:          {code: "TLAX", name: "Tlaxcala"},
	Veracruz:          {code: "VER", name: "Veracruz", aliases: []string{"veracruz de ignacio de la llave"}},
	Yucatan:           {code: "YUC", name: "Yucatán"},
	Zacatecas:         {code: "ZAC", name: "Zacatecas"},
}

// stateLookup maps folded codes, names and aliases to states.
var stateLookup = buildStateLookup()

func buildStateLookup() map[string]State {
	m := make(map[string]State, len(stateTable)*3)
	for i := 1; i < len(stateTable); i++ {
		s := State(i)
		info := stateTable[i]
		m[FoldName(info.code)] = s
		m[FoldName(info.name)] = s
		for _, a := range info.aliases {
			m[FoldName(a)] = s
		}
	}
	return m
}

// AllStates returns every state in INEGI order.
func AllStates() []State {
	out := make([]State, 0, len(stateTable)-1)
	for i := 1; i < len(stateTable); i++ {
		out = append(out, State(i))
	}
	return out
}

// Valid reports whether s is one of the 32 federal entities.
func (s State) Valid() bool {
	return s >= Aguascalientes && s <= Zacatecas
}

// Code returns the short code, e.g. "JAL". Invalid states render as "".
func (s State) Code() string {
	if !s.Valid() {
		return ""
	}
	return stateTable[s].code
}

// Name returns the Spanish display name, e.g. "Jalisco".
func (s State) Name() string {
	if !s.Valid() {
		return ""
	}
	return stateTable[s].name
}

// INEGI returns the two-digit INEGI entity key, e.g. "14".
func (s State) INEGI() string {
	if !s.Valid() {
		return ""
	}
	return fmt.Sprintf("%02d", uint8(s))
}

func (s State) String() string {
	if !s.Valid() {
		return fmt.Sprintf("State(%d)", uint8(s))
	}
	return s.Code()
}

// ParseState resolves a state code, INEGI number or Spanish name. Matching
// ignores case, accents and repeated whitespace.
func ParseState(v string) (State, error) {
	folded := FoldName(v)
	if folded == "" {
		return 0, fmt.Errorf("unknown state %q", v)
	}
	if n, err := strconv.Atoi(folded); err == nil {
		s := State(n)
		if n > 0 && s.Valid() {
			return s, nil
		}
		return 0, fmt.Errorf("unknown state %q", v)
	}
	if s, ok := stateLookup[folded]; ok {
		return s, nil
	}
	return 0, fmt.Errorf("unknown state %q", v)
}

// FoldName lower-cases s, strips diacritics and collapses whitespace, so
// "  MICHOACÁN de Ocampo" and "michoacan de ocampo" compare equal.
func FoldName(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}
