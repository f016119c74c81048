package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultCatalogLoads(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if c.Len() < 40 {
		t.Fatalf("expected a populated default catalog, got %d foods", c.Len())
	}
	if issues := c.Issues(); len(issues) != 0 {
		t.Fatalf("default catalog should validate cleanly, got %v", issues)
	}

	pasta, ok := c.Food("Pasta")
	if !ok {
		t.Fatal("expected pasta in default catalog")
	}
	if pasta.MealType != MealDinner {
		t.Errorf("pasta meal type = %q, want dinner", pasta.MealType)
	}
	if pasta.Order != 0 {
		t.Errorf("pasta should be first in load order, got %d", pasta.Order)
	}

	v := c.Vocabulary()
	if len(v.Categories) == 0 || len(v.MealTypes) != 5 || len(v.Intensity) != 2 {
		t.Fatalf("unexpected vocabulary shape: %d categories, %d meal types, %d intensity",
			len(v.Categories), len(v.MealTypes), len(v.Intensity))
	}
	if len(v.Unsure) == 0 || len(v.Cues) == 0 {
		t.Fatal("expected unsure phrases and craving cues")
	}
}

func TestNewValidation(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		_, err := New(nil, Vocabulary{})
		if !errors.Is(err, ErrEmptyCatalog) {
			t.Fatalf("expected ErrEmptyCatalog, got %v", err)
		}
	})

	t.Run("DuplicateID", func(t *testing.T) {
		_, err := New([]FoodEntity{{ID: "apple", Tastes: []string{"sweet"}}, {ID: " Apple ", Tastes: []string{"sweet"}}}, Vocabulary{})
		if err == nil {
			t.Fatal("expected duplicate id error")
		}
	})

	t.Run("MissingID", func(t *testing.T) {
		_, err := New([]FoodEntity{{Name: "mystery"}}, Vocabulary{})
		if err == nil {
			t.Fatal("expected missing id error")
		}
	})

	t.Run("MalformedEntriesAreFlaggedNotFatal", func(t *testing.T) {
		c, err := New([]FoodEntity{
			{ID: "apple", Types: []string{"fruit"}, Tastes: []string{"sweet"}, MealType: "snack"},
			{ID: "mystery", MealType: "brunchish"},
			{ID: "negative", Types: []string{"snack"}, Carbs: -1},
		}, Vocabulary{})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		mystery, _ := c.Food("mystery")
		if !mystery.Malformed {
			t.Error("food without categories should be malformed")
		}
		if mystery.MealType != "" {
			t.Errorf("unknown meal type should be cleared, got %q", mystery.MealType)
		}
		negative, _ := c.Food("negative")
		if !negative.Malformed {
			t.Error("negative nutrition should be malformed")
		}
		apple, _ := c.Food("apple")
		if apple.Malformed {
			t.Error("apple should be valid")
		}
		if got := len(c.Issues()); got != 3 {
			t.Errorf("expected 3 issues, got %d: %v", got, c.Issues())
		}
	})
}

func TestMealTypeCompatible(t *testing.T) {
	tests := []struct {
		a, b MealType
		want bool
	}{
		{MealDinner, MealDinner, true},
		{MealDinner, MealLunch, false},
		{MealSnack, MealDessert, true},
		{MealDessert, MealSnack, true},
		{"", MealBreakfast, true},
		{MealBreakfast, "", true},
		{MealSnack, MealBreakfast, false},
	}
	for _, tt := range tests {
		if got := tt.a.Compatible(tt.b); got != tt.want {
			t.Errorf("%q.Compatible(%q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestFileProvider(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "foods.yaml")
	doc := `foods:
  - id: Cucumber
    types: [vegetable]
    tastes: [fresh, crunchy]
    meal_type: Snack
    glycemic_index: 15
    carbs: 2
    sugar: 1
categories:
  - id: crunchy
    keywords: [Crunchy, crispy, crunchy]
meal_types:
  - id: snack
    keywords: [snack]
unsure: [whatever]
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}

	c, err := FileProvider{Path: path}.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	f, ok := c.Food("cucumber")
	if !ok {
		t.Fatal("expected cucumber")
	}
	if f.Name != "cucumber" {
		t.Errorf("name should default to id, got %q", f.Name)
	}
	if f.MealType != MealSnack {
		t.Errorf("meal type = %q, want snack", f.MealType)
	}
	cats := c.Vocabulary().Categories
	if len(cats) != 1 || len(cats[0].Phrases) != 2 {
		t.Fatalf("keywords should be lowercased and deduplicated, got %+v", cats)
	}

	if _, err := (FileProvider{Path: filepath.Join(dir, "missing.yaml")}).Load(context.Background()); err == nil {
		t.Fatal("expected error for missing file")
	}

	empty, err := FileProvider{}.Load(context.Background())
	if err != nil {
		t.Fatalf("empty path should load the default catalog: %v", err)
	}
	if empty.Len() == 0 {
		t.Fatal("default catalog is empty")
	}
}
