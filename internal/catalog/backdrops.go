package catalog

import (
	"sort"
	"strconv"
)

// StandardCount is the number of standard catalog backdrops, numbered 1..StandardCount.
const StandardCount = 12

var standardNames = map[int]string{
	1:  "Tropical Beach",
	2:  "Eiffel Tower",
	3:  "New York City",
	4:  "Mountain Sunset",
	5:  "Space Galaxy",
	6:  "Cherry Blossoms",
	7:  "Northern Lights",
	8:  "Desert Dunes",
	9:  "Underwater Ocean",
	10: "Autumn Forest",
	11: "Grand Canyon",
	12: "London Bridge",
}

var extraNames = map[string]string{
	"1":  "Christmas Tree",
	"2":  "Halloween Pumpkins",
	"3":  "Valentine Hearts",
	"4":  "Birthday Party",
	"5":  "Wedding Day",
	"6":  "Graduation Day",
	"7":  "Superhero",
	"8":  "Outer Space",
	"9":  "Retro 80s",
	"10": "Neon City",
	"11": "Football Field",
	"12": "Basketball Court",
	"13": "Baseball Stadium",
	"14": "Cute Puppy",
	"15": "Rainbow Fun",
	"16": "Gold Sparkle",
	"17": "Business Office",
	"18": "Fireworks Show",
	"19": "Easter Eggs",
	"20": "Fourth of July",
	"21": "Teaching Tech",
	"22": "Tech Class",
	"23": "Phone Lesson",
}

// IsStandard reports whether n is a standard catalog number.
func IsStandard(n int) bool { return n >= 1 && n <= StandardCount }

// StandardNumbers returns 1..StandardCount.
func StandardNumbers() []int {
	out := make([]int, StandardCount)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

// Entry is a catalog listing row.
type Entry struct {
	ID   BackgroundID `json:"id"`
	Kind string       `json:"kind"`
	Name string       `json:"name"`
}

// Standards lists the standard backdrops whose numbers are in enabled, in catalog order.
func Standards(enabled []int) []Entry {
	on := make(map[int]bool, len(enabled))
	for _, n := range enabled {
		on[n] = true
	}
	var out []Entry
	for _, n := range StandardNumbers() {
		if on[n] {
			id := Standard(n)
			out = append(out, Entry{ID: id, Kind: id.Kind().String(), Name: id.Name()})
		}
	}
	return out
}

// Extras lists every curated extra in catalog order.
func Extras() []Entry {
	out := make([]Entry, 0, len(extraNames))
	for tag := range extraNames {
		id := Extra(tag)
		out = append(out, Entry{ID: id, Kind: id.Kind().String(), Name: id.Name()})
	}
	sort.Slice(out, func(i, j int) bool {
		return extraOrder(out[i].ID.tag) < extraOrder(out[j].ID.tag)
	})
	return out
}

func extraOrder(tag string) int {
	n, _ := strconv.Atoi(tag)
	return n
}
