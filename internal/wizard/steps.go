package wizard

// Step is one configuration question with a closed set of mutually
// exclusive options. The protocol does not care how many options a
// step has; the rental flow happens to use two everywhere.
type Step struct {
	Key     string
	Title   string
	Options []string
}

// DefaultSteps is the equipment questionnaire walked for every
// claimed booking, in order.
func DefaultSteps() []Step {
	return []Step{
		{Key: "helmet2", Title: "Second helmet?", Options: []string{"Yes", "No"}},
		{Key: "fuel", Title: "Fuel level at handover?", Options: []string{"Full tank", "Empty tank"}},
		{Key: "wash", Title: "Condition at handover?", Options: []string{"Clean", "Dirty"}},
		{Key: "holder", Title: "Phone holder?", Options: []string{"Yes", "No"}},
	}
}

// negativeOptions are default answers that are never recorded into
// the booking's equipment selections.
var negativeOptions = map[string]struct{}{
	"No":         {},
	"Empty tank": {},
	"Dirty":      {},
}

func negative(option string) bool {
	_, ok := negativeOptions[option]
	return ok
}
