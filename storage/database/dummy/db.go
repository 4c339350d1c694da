package dummydb

import (
	"sync"

	"github.com/trezcool/elimu/core/catalog"
	"github.com/trezcool/elimu/core/progress"
	"github.com/trezcool/elimu/core/user"
)

type (
	DB struct {
		user     *userTable
		catalog  *catalogTable
		progress *progressTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	catalogTable struct {
		sync.RWMutex
		sections map[string]catalog.Section
		modules  map[string]*catalog.Module
		quizzes  map[string]*catalog.Quiz
	}

	progressTable struct {
		sync.RWMutex
		table map[string]*progress.Progress // keyed by user ID
	}
)

func Open() (*DB, error) {
	db := &DB{
		user: &userTable{table: make(map[string]*user.User)},
		catalog: &catalogTable{
			sections: map[string]catalog.Section{
				"general":  {Code: "general", Label: "General"},
				"sciences": {Code: "sciences", Label: "Sciences"},
				"letters":  {Code: "letters", Label: "Letters"},
			},
			modules: make(map[string]*catalog.Module),
			quizzes: make(map[string]*catalog.Quiz),
		},
		progress: &progressTable{table: make(map[string]*progress.Progress)},
	}
	return db, nil
}
