// saga.go — synthetic narrative generator shared by the benchmarks.
//
// Turns are composed from templates that exercise every detection pattern
// family: dialogue attribution, bare action, titles, typed places, typed
// objects, factions, plus pronoun and relation verbs and plain noise.
package main

import (
	"fmt"
	"math/rand"
	"strings"
)

var sagaPeople = []string{
	"Marcus", "Selene", "Kirito", "Thorne", "Isolde", "Garrick", "Yuna", "Percival",
}

var sagaPlaces = []string{
	"Elven Forest", "Frostpeak Valley", "Ashen Desert", "Ember Keep",
}

var sagaObjects = []string{
	"Winter Blade", "Dawn Banner", "Storm Horn", "Ember Crown",
}

var sagaFactions = []string{
	"Crimson Order", "Iron Guild", "Night Watch",
}

var sagaQuotes = []string{
	"Stay close", "We ride at dawn", "The road is long", "Keep your voice down",
	"It ends tonight", "Hold the line", "Not another step",
}

var sagaNoise = []string{
	"Then the rain came and the road turned to mud.",
	"Suddenly there was thunder beyond the hills.",
	"He waited.",
	"The night passed without incident.",
	"Somewhere far off, a bell rang twice.",
}

// sagaTurn composes one narrative turn of two or three sentences.
func sagaTurn(rng *rand.Rand) string {
	n := 2 + rng.Intn(2)
	sentences := make([]string, 0, n)
	for i := 0; i < n; i++ {
		sentences = append(sentences, sagaSentence(rng))
	}
	return strings.Join(sentences, " ")
}

func sagaSentence(rng *rand.Rand) string {
	person := func() string { return sagaPeople[rng.Intn(len(sagaPeople))] }
	place := func() string { return sagaPlaces[rng.Intn(len(sagaPlaces))] }
	object := func() string { return sagaObjects[rng.Intn(len(sagaObjects))] }
	faction := func() string { return sagaFactions[rng.Intn(len(sagaFactions))] }
	quote := func() string { return sagaQuotes[rng.Intn(len(sagaQuotes))] }

	switch rng.Intn(10) {
	case 0:
		return fmt.Sprintf("%q said %s.", quote()+",", person())
	case 1:
		return fmt.Sprintf("%s nodded as the wind rose.", person())
	case 2:
		return fmt.Sprintf("%s turned toward the gates.", person())
	case 3:
		return fmt.Sprintf("%s reached %s before nightfall.", person(), place())
	case 4:
		return fmt.Sprintf("%s carried the %s.", person(), object())
	case 5:
		a := person()
		b := person()
		for b == a {
			b = sagaPeople[rng.Intn(len(sagaPeople))]
		}
		return fmt.Sprintf("%s greeted %s at the crossroads.", a, b)
	case 6:
		return fmt.Sprintf("Lady %s stood before the %s.", person(), faction())
	case 7:
		return fmt.Sprintf("%s served the %s.", person(), faction())
	case 8:
		return fmt.Sprintf("%s entered the %s at dusk.", person(), place())
	default:
		return sagaNoise[rng.Intn(len(sagaNoise))]
	}
}
