package graph

// LoadingTitle is the title shown on every placeholder.
const LoadingTitle = "Loading..."

var loadingSteps = []string{
	"Step 1/9: Uploading file",
	"Step 2/9: Validating file format",
	"Step 3/9: Loading data into memory",
	"Step 4/9: Cleaning and preprocessing data",
	"Step 5/9: Analyzing descriptive statistics",
	"Step 6/9: Performing feature extraction",
	"Step 7/9: Calculating correlations",
	"Step 8/9: Creating visualizations",
	"Step 9/9: Finalizing and summarizing insights",
	"Step 9/9: Almost there please be patient",
}

// LoadingText returns the progress message for a loading step. Steps past
// the end stay on the last message.
func LoadingText(step int) string {
	switch {
	case step < 0:
		return loadingSteps[0]
	case step >= len(loadingSteps):
		return loadingSteps[len(loadingSteps)-1]
	}
	return loadingSteps[step]
}

// LastLoadingStep is the index of the final progress message.
func LastLoadingStep() int {
	return len(loadingSteps) - 1
}
