package main

import (
	"fmt"
	"os"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/grading"
	logsvc "github.com/trezcool/gradebook/services/logger"
	"github.com/trezcool/gradebook/storage/database"
	sqlxrepos "github.com/trezcool/gradebook/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger("ADMIN", conf)

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}

	// start CLI
	cli := commandLine{
		db:         db.DB,
		gradingSvc: grading.NewService(sqlxrepos.NewGradingRepository(db), noopNotifier{}, logger),
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %v", err), err)
		}
		os.Exit(1)
	}
}

// noopNotifier drops notifications: no admin command finalizes compositions.
type noopNotifier struct{}

func (noopNotifier) Notify(...core.Notification) {}
