package trim_test

import (
	"fmt"

	"github.com/tyrese/smartcut/trim"
)

func ExampleMarkers_Steps() {
	m := trim.Markers{Start: 1, End: 7.3, FirstKf: trim.At(2), LastKf: trim.At(6)}
	for _, step := range m.Steps() {
		fmt.Println(step)
	}
	// Output:
	// pre-roll     transcode [1.000, 2.000)
	// aligned-copy copy      [2.000, 6.000]
	// post-roll    transcode (6.000, 7.300]
}

func ExampleMarkers_Steps_startOnKeyframe() {
	m := trim.Markers{Start: 2, End: 5, FirstKf: trim.At(2)}
	for _, step := range m.Steps() {
		fmt.Println(step)
	}
	// Output:
	// pre-roll     skip
	// aligned-copy skip
	// post-roll    transcode [2.000, 5.000]
}
