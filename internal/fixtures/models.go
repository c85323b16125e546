// Package fixtures holds the models and the round-trip suite shared by the
// tests of every storage format.
package fixtures

import "math"

type Address struct {
	City string `save:"city"`
}

type Person struct {
	Name    string  `save:"name"`
	Address Address `save:"address"`
}

func Homer() *Person {
	return &Person{Name: "Homer", Address: Address{City: "Springfield"}}
}

type Inner struct {
	Level  int
	Deep   Address
	Values []float64
}

// Everything has a field of every supported shape.
type Everything struct {
	Flag    bool
	Zero    int
	One     int
	Small   int8
	Big     uint32
	Huge    int64
	Ratio   float64
	Half    float32
	Title   string
	Blank   string
	Padded  string
	Missing *int
	Present *string
	Any     any
	NoAny   any

	Numbers   []int
	NoNumbers []int
	Words     []string
	Mixed     []any
	Pair      [2]float64
	NoPair    [0]int
	Tags      map[string]struct{}
	NoTags    map[int]struct{}
	Scores    map[string]int
	NoScores  map[string]float64
	Flags     map[int]bool

	Renamed int    `save:"renamed_field"`
	Skipped string `save:"-"`

	Home  Address
	Work  *Address
	Inner Inner

	hidden int
}

// NewEverything returns an Everything with every field set. Skipped and the
// unexported field are left zero since they are never stored.
func NewEverything() *Everything {
	title := "Grüße, <world> & \"friends\""
	return &Everything{
		Flag:    true,
		Zero:    0,
		One:     1,
		Small:   -128,
		Big:     math.MaxUint32,
		Huge:    math.MaxInt64,
		Ratio:   3.25,
		Half:    0.5,
		Title:   title,
		Blank:   "",
		Padded:  "  padded\tvalue  ",
		Missing: nil,
		Present: &title,
		Any:     42,
		NoAny:   nil,

		Numbers:   []int{3, 1, 2},
		NoNumbers: []int{},
		Words:     []string{"alpha", "", "__none__"},
		Mixed:     []any{"x", "y"},
		Pair:      [2]float64{1.5, -2e300},
		NoPair:    [0]int{},
		Tags:      map[string]struct{}{"b": {}, "a": {}},
		NoTags:    map[int]struct{}{},
		Scores:    map[string]int{"b": 2, "a": 1, "c": 3},
		NoScores:  map[string]float64{},
		Flags:     map[int]bool{2: false, 1: true},

		Renamed: 7,

		Home: Address{City: "Shelbyville"},
		Work: &Address{City: "Capital City"},
		Inner: Inner{
			Level:  2,
			Deep:   Address{City: "Ogdenville"},
			Values: []float64{0.1, 0.2},
		},
	}
}

type NoneZeroEmpty struct {
	None     *int
	Zero     int
	Empty    []int
	NoneAny  any
	ZeroAny  any
	EmptyAny any
}

type Fidelity struct {
	True any
	One  any
	Ones []any
}

type Scores struct {
	Scores map[string]int
}

type MixedList struct {
	Count int
	Mixed []any
}

type NameOnly struct {
	Name string `save:"name"`
}

type Nullable struct {
	V *int `save:"v"`
}

type NotNullable struct {
	V int `save:"v"`
}

// CaseNames has nested objects whose names differ only by letter case from
// each other and from the root.
type CaseNames struct {
	Root  Address
	Home  Address
	Lower Address `save:"home"`
	Inner struct {
		ROOT Address
	}
}

func NewCaseNames() *CaseNames {
	c := &CaseNames{
		Root:  Address{City: "Root City"},
		Home:  Address{City: "Upper"},
		Lower: Address{City: "lower"},
	}
	c.Inner.ROOT = Address{City: "Deep"}
	return c
}

// LineEndings holds strings with carriage returns and other whitespace.
type LineEndings struct {
	CRLF  string
	CR    string
	Lines []string
	Notes map[string]string
}

func NewLineEndings() *LineEndings {
	return &LineEndings{
		CRLF:  "a\r\nb",
		CR:    "a\rb\rc",
		Lines: []string{"\r", "\r\n", "\n\t"},
		Notes: map[string]string{"k\r": "v\r\n"},
	}
}
