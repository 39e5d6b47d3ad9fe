package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"strings"

	"github.com/trezcool/gradebook/core/grading"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db         *sql.DB
	gradingSvc grading.ServiceInterface
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS...] - run a database migration command (up, down, status, redo, ...)")
	fmt.Println("  reindex -course ID        - rewrite the grade composition indices of a course to 1..N")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	reindexCmd := flag.NewFlagSet("reindex", flag.ContinueOnError)
	reindexCourse := reindexCmd.Int("course", 0, "The ID of the course to reindex.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "reindex":
		if err := reindexCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *reindexCourse <= 0 {
			reindexCmd.Usage()
			return errHelp
		}
		return cli.reindex(*reindexCourse)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) reindex(courseID int) error {
	comps, err := cli.gradingSvc.Reindex(context.Background(), courseID)
	if err != nil {
		return err
	}

	names := make([]string, len(comps))
	for i, comp := range comps {
		names[i] = fmt.Sprintf("%d. %s", comp.Index, comp.Name)
	}
	fmt.Printf("course %d reindexed:\n  %s\n", courseID, strings.Join(names, "\n  "))
	return nil
}
