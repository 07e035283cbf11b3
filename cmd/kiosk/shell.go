package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rezkam/housekeeping/internal/application/booking"
	"github.com/rezkam/housekeeping/internal/application/reconcile"
	"github.com/rezkam/housekeeping/internal/application/task"
	"github.com/rezkam/housekeeping/internal/domain"
)

const helpText = `commands:
  list                               show the cached task list
  refresh                            reload the task list from the server
  start|pause|resume|stop <task>     run a lifecycle action (task is a list number or ID)
  issue <task> <description> [--photo <path>]
                                     report a maintenance issue
  notes <task> <text>                replace the housekeeping notes
  rooms [date]                       rooms without an open task on date
  create <room> <date> <type> [capacity]
                                     schedule an unassigned task
  help                               show this text
  quit                               leave the kiosk`

var errQuit = errors.New("quit")

// shell runs kiosk commands against the session cache.
type shell struct {
	out     io.Writer
	staffID string
	cache   *reconcile.Cache
	machine *task.Machine
	guard   *booking.Guard
	now     func() time.Time
}

// readLines delivers lines from in until EOF or ctx ends, then closes the channel.
// A read already blocked on in returns only when in yields.
func readLines(ctx context.Context, in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

// loop reads commands until EOF, quit or ctx ends.
func (s *shell) loop(ctx context.Context, in io.Reader) error {
	readCtx, stop := context.WithCancel(ctx)
	defer stop()
	lines := readLines(readCtx, in)

	fmt.Fprintln(s.out, "housekeeping kiosk, type help for commands")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.cache.Changes():
			fmt.Fprintf(s.out, "task list updated (%d tasks)\n", len(s.cache.Get()))
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			err := s.exec(ctx, line)
			if errors.Is(err, errQuit) {
				return nil
			}
			if err != nil {
				fmt.Fprintf(s.out, "error: %s\n", describe(err))
			}
		}
	}
}

// exec runs one command line.
func (s *shell) exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "help":
		fmt.Fprintln(s.out, helpText)
		return nil
	case "quit", "exit":
		return errQuit
	case "list":
		s.printTasks()
		return nil
	case "refresh":
		if err := s.cache.Refresh(ctx); err != nil {
			return err
		}
		s.printTasks()
		return nil
	case "start", "pause", "resume", "stop":
		return s.transition(ctx, cmd, args)
	case "issue":
		return s.reportIssue(ctx, args)
	case "notes":
		return s.setNotes(ctx, args)
	case "rooms":
		return s.listRooms(ctx, args)
	case "create":
		return s.createTask(ctx, args)
	default:
		return fmt.Errorf("unknown command %q, type help for commands", cmd)
	}
}

func (s *shell) transition(ctx context.Context, action string, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: %s <task>", action)
	}
	if s.staffID == "" {
		return errNoStaff
	}
	id, err := s.resolve(args[0])
	if err != nil {
		return err
	}

	var t *domain.Task
	switch action {
	case "start":
		t, err = s.machine.Start(ctx, s.staffID, id)
	case "pause":
		t, err = s.machine.Pause(ctx, s.staffID, id)
	case "resume":
		t, err = s.machine.Resume(ctx, s.staffID, id)
	case "stop":
		t, err = s.machine.Stop(ctx, s.staffID, id)
	}
	if err != nil {
		return err
	}
	s.printTask(t)
	return nil
}

func (s *shell) reportIssue(ctx context.Context, args []string) error {
	if s.staffID == "" {
		return errNoStaff
	}
	var photoPath string
	rest := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		if args[i] == "--photo" && i+1 < len(args) {
			photoPath = args[i+1]
			i++
			continue
		}
		rest = append(rest, args[i])
	}
	if len(rest) < 1 {
		return errors.New("usage: issue <task> <description> [--photo <path>]")
	}
	id, err := s.resolve(rest[0])
	if err != nil {
		return err
	}

	report := task.IssueReport{Description: strings.Join(rest[1:], " ")}
	if photoPath != "" {
		data, err := os.ReadFile(photoPath)
		if err != nil {
			return fmt.Errorf("failed to read photo: %w", err)
		}
		report.Photo = data
		report.PhotoContentType = http.DetectContentType(data)
	}

	t, err := s.machine.ReportIssue(ctx, s.staffID, id, report)
	if err != nil {
		return err
	}
	s.printTask(t)
	return nil
}

func (s *shell) setNotes(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: notes <task> <text>")
	}
	id, err := s.resolve(args[0])
	if err != nil {
		return err
	}
	text := strings.Join(args[1:], " ")
	t, err := s.machine.SetNotes(ctx, id, task.Notes{Housekeeping: &text})
	if err != nil {
		return err
	}
	s.printTask(t)
	return nil
}

func (s *shell) listRooms(ctx context.Context, args []string) error {
	day := domain.DateOf(s.now())
	if len(args) > 0 {
		var err error
		if day, err = domain.ParseDate(args[0]); err != nil {
			return err
		}
	}
	rooms, err := s.guard.AvailableRooms(ctx, day)
	if err != nil {
		return err
	}
	if len(rooms) == 0 {
		fmt.Fprintf(s.out, "no rooms available on %s\n", domain.FormatDate(day))
		return nil
	}
	w := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ROOM\tNAME\tGROUP")
	for _, r := range rooms {
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.ID, r.Name, r.Group)
	}
	return w.Flush()
}

func (s *shell) createTask(ctx context.Context, args []string) error {
	if len(args) < 3 || len(args) > 4 {
		return errors.New("usage: create <room> <date> <type> [capacity]")
	}
	day, err := domain.ParseDate(args[1])
	if err != nil {
		return err
	}
	params := booking.CreateTaskParams{
		Date:         day,
		RoomID:       args[0],
		CleaningType: args[2],
	}
	if len(args) == 4 {
		params.GuestCapacityID = &args[3]
	}
	t, err := s.guard.CreateTask(ctx, params)
	if err != nil {
		return err
	}
	s.printTask(t)
	return nil
}

// resolve accepts a 1-based position in the current list or a task ID.
func (s *shell) resolve(ref string) (string, error) {
	if n, err := strconv.Atoi(ref); err == nil {
		tasks := s.cache.Get()
		if n < 1 || n > len(tasks) {
			return "", fmt.Errorf("no task number %d in the list", n)
		}
		return tasks[n-1].ID, nil
	}
	return ref, nil
}

func (s *shell) printTasks() {
	tasks := s.cache.Get()
	if len(tasks) == 0 {
		fmt.Fprintf(s.out, "no tasks (%s)\n", s.cache.State())
		return
	}
	active, _ := s.cache.ActiveTaskID()

	w := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tDATE\tROOM\tTYPE\tSTATUS\tLIMIT\tACTUAL\tDIFF\t")
	for i, t := range tasks {
		marker := ""
		if t.ID == active {
			marker = "*"
		}
		fmt.Fprintf(w, "%d%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			i+1, marker,
			domain.FormatDate(t.Date),
			roomLabel(t.Room),
			t.CleaningType,
			t.Status,
			minutes(t.TimeLimit),
			minutes(t.ActualTime),
			minutes(t.Difference))
	}
	w.Flush()
}

func (s *shell) printTask(t *domain.Task) {
	fmt.Fprintf(s.out, "%s %s %s", t.ID, roomLabel(t.Room), t.Status)
	if t.ActualTime != nil {
		fmt.Fprintf(s.out, " actual=%dm", *t.ActualTime)
	}
	if t.Difference != nil {
		fmt.Fprintf(s.out, " diff=%+dm", *t.Difference)
	}
	if t.IssuePhoto != nil {
		fmt.Fprintf(s.out, " photo=%s", *t.IssuePhoto)
	}
	fmt.Fprintln(s.out)
}

func roomLabel(r domain.Room) string {
	if r.Name == "" {
		return r.ID
	}
	return r.Name
}

func minutes(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v) + "m"
}

var errNoStaff = errors.New("no staff member signed in, restart with --staff")

// describe turns an error into a line for the operator.
func describe(err error) string {
	switch {
	case domain.IsConflict(err):
		return err.Error() + " (refresh and try again)"
	case errors.Is(err, domain.ErrPhotoUpload):
		return err.Error() + " (issue not saved)"
	default:
		return err.Error()
	}
}
