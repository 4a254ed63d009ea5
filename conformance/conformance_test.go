package conformance

import "testing"

func TestScenarios(t *testing.T) {
	tests, err := LoadDir("testdata")
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if len(tests) == 0 {
		t.Fatal("no conformance fixtures found under testdata")
	}
	for _, lt := range tests {
		lt := lt
		t.Run(lt.File+"/"+lt.Test.Name, func(t *testing.T) {
			if lt.Test.Skip {
				t.Skip("fixture marked skip")
			}
			if err := RunCase(lt.Test); err != nil {
				t.Fatalf("%s (%s): %v", lt.Test.Name, lt.Test.Description, err)
			}
		})
	}
}
