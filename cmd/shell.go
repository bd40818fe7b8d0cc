package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	ishell "github.com/abiosoft/ishell"
	"github.com/common-nighthawk/go-figure"
	"github.com/jghoshh/wellspring/app"
	"github.com/jghoshh/wellspring/auth"
	"github.com/jghoshh/wellspring/lib/utils"
	"github.com/jghoshh/wellspring/notify"
	"github.com/jghoshh/wellspring/reminder"
	"github.com/jghoshh/wellspring/tracker"
	"github.com/spf13/cobra"
)

// Command is one shell command: its name, a short description and the function run when it is invoked.
type Command struct {
	Name string
	Desc string
	Func func(c *ishell.Context)
}

// session is one interactive shell run. Guest and user commands are swapped in
// and out of the shell as the user signs in and out.
type session struct {
	ctx   context.Context
	app   *app.App
	shell *ishell.Shell

	guestCommands  []Command
	userCommands   []Command
	commonCommands []Command

	loggedIn bool
	email    string
}

// NewShellCommand creates the shell command.
func NewShellCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Start the interactive tracker shell (default)",
		Long: `Start the interactive shell. Sign up or sign in, then log workouts,
meditations, moods and journal entries. Type 'help' for the command list.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(cmd.Context(), rootOpts)
		},
	}
}

func runShell(ctx context.Context, opts *RootOptions) error {
	sh := ishell.New()

	a, err := newApp(ctx, opts, app.Options{
		Out:    shellWriter{sh},
		Prompt: shellPrompt(sh),
	})
	if err != nil {
		return err
	}
	defer a.Close()

	s := &session{ctx: ctx, app: a, shell: sh}
	s.initCommands()

	sh.Println()
	figure.NewFigure("Wellspring", "basic", true).Print()
	sh.Println("Welcome to Wellspring, your wellness tracker. Type 'help' to see a list of commands.")
	sh.Println()

	s.askPermission()
	a.Scheduler.Start(ctx)

	addCommands(sh, s.commonCommands)
	s.checkSession()

	sh.Run()
	return nil
}

// shellWriter routes notification banners through the shell so the prompt is redrawn.
type shellWriter struct {
	sh *ishell.Shell
}

func (w shellWriter) Write(p []byte) (int, error) {
	w.sh.Print(string(p))
	return len(p), nil
}

func shellPrompt(sh *ishell.Shell) notify.Prompt {
	return func(_ context.Context, question string) (bool, error) {
		sh.Print(question + " (yes/no): ")
		return isYes(sh.ReadLine()), nil
	}
}

// askPermission asks the notification question before the shell starts reading
// commands, so the answer never races with the command prompt.
func (s *session) askPermission() {
	state := s.app.Scheduler.State()
	if !state.Supported || state.Permission != notify.PermissionUnset {
		return
	}
	if _, err := s.app.Scheduler.RequestPermission(s.ctx); err != nil {
		s.printError(err)
	}
}

// checkSession restores a saved sign-in and refreshes its dashboard.
func (s *session) checkSession() {
	user, err := s.app.Auth.CurrentUser(s.ctx)
	if err != nil {
		s.printError(err)
	}
	if user == nil {
		addCommands(s.shell, s.guestCommands)
		return
	}

	d, err := s.app.Tracker.Refresh(s.ctx, user.Email)
	if err != nil {
		s.printError(err)
		addCommands(s.shell, s.guestCommands)
		return
	}
	s.signedIn(user.Email)
	s.shell.Println(renderDashboard(d, s.app.Tracker.Now()))
}

func (s *session) signedIn(email string) {
	s.loggedIn = true
	s.email = email
	for _, command := range s.guestCommands {
		s.shell.DeleteCmd(command.Name)
	}
	addCommands(s.shell, s.userCommands)
}

func (s *session) signedOut() {
	s.loggedIn = false
	s.email = ""
	for _, command := range s.userCommands {
		s.shell.DeleteCmd(command.Name)
	}
	addCommands(s.shell, s.guestCommands)
}

func (s *session) printError(err error) {
	utils.PrintError(shellWriter{s.shell}, err.Error())
}

// fail prints err and reports whether it was non-nil. A user that vanished from
// the directory is signed out.
func (s *session) fail(err error) bool {
	if err == nil {
		return false
	}
	s.printError(err)
	if errors.Is(err, tracker.ErrUserNotFound) {
		_ = s.app.Auth.Logout(s.ctx)
		s.signedOut()
	}
	return true
}

func (s *session) initCommands() {
	s.guestCommands = []Command{
		{Name: "signup", Desc: "Create a new account", Func: s.signup},
		{Name: "signin", Desc: "Sign in to your account", Func: s.signin},
	}

	s.userCommands = []Command{
		{Name: "dashboard", Desc: "Show your dashboard", Func: s.dashboard},
		{Name: "workout", Desc: "Complete a workout", Func: s.workout},
		{Name: "meditate", Desc: "Complete a meditation", Func: s.meditate},
		{Name: "mood", Desc: "Log how you feel", Func: s.mood},
		{Name: "journal", Desc: "Write a journal entry", Func: s.journal},
		{Name: "moods", Desc: "Show your mood history", Func: s.moods},
		{Name: "journals", Desc: "Show your journal", Func: s.journals},
		{Name: "notifications", Desc: "Turn reminders on or off", Func: s.notifications},
		{Name: "sample", Desc: "Fill your history with sample data", Func: s.sample},
		{Name: "signout", Desc: "Sign out of your account", Func: s.signout},
	}

	s.commonCommands = []Command{
		{
			Name: "exit",
			Desc: "Exit the application",
			Func: func(c *ishell.Context) {
				c.Println("Goodbye!")
				c.Stop()
			},
		},
	}
	// help lists commands, so it is appended after the list exists.
	s.commonCommands = append(s.commonCommands, Command{
		Name: "help",
		Desc: "List available commands",
		Func: func(c *ishell.Context) {
			c.Println("Available commands:")
			commands := s.guestCommands
			if s.loggedIn {
				commands = s.userCommands
			}
			for _, command := range append(commands, s.commonCommands...) {
				c.Println("  |-- '" + command.Name + "' : " + command.Desc)
			}
			c.Println()
		},
	})
}

func (s *session) signup(c *ishell.Context) {
	var in auth.RegisterInput

	in.Name = readRequired(c, "Enter Name: ", "Name cannot be empty.")
	for {
		in.Email = readRequired(c, "Enter Email: ", "Email cannot be empty.")
		if utils.ValidateEmail(in.Email) {
			break
		}
		c.Println("Email is not valid.")
	}
	for {
		age, err := auth.ParseAge(ask(c, "Enter Age: "))
		if err == nil {
			in.Age = age
			break
		}
		c.Println("Age must be a positive whole number.")
	}
	in.Password = readPassword(c, "Enter Password: ")

	user, err := s.app.Auth.Register(s.ctx, in)
	if err != nil {
		s.printError(err)
		return
	}
	c.Printf("Account created for %s. Type 'signin' to sign in.\n", user.Email)
}

func (s *session) signin(c *ishell.Context) {
	email := readRequired(c, "Enter Email: ", "Email cannot be empty.")
	password := readPassword(c, "Enter Password: ")

	user, err := s.app.Auth.Login(s.ctx, email, password)
	if err != nil {
		s.printError(err)
		return
	}

	d, err := s.app.Tracker.Refresh(s.ctx, user.Email)
	if err != nil {
		s.printError(err)
		return
	}
	s.signedIn(user.Email)
	c.Println("Welcome, you are now signed in.")
	c.Println(renderDashboard(d, s.app.Tracker.Now()))
}

func (s *session) signout(c *ishell.Context) {
	if err := s.app.Auth.Logout(s.ctx); err != nil {
		s.printError(err)
		return
	}
	c.Println("You are now signed out.")
	s.signedOut()
}

func (s *session) dashboard(c *ishell.Context) {
	d, err := s.app.Tracker.Dashboard(s.ctx, s.email)
	if s.fail(err) {
		return
	}
	c.Println(renderDashboard(d, s.app.Tracker.Now()))
}

func (s *session) workout(c *ishell.Context) {
	presets := tracker.Presets().Workouts
	options := make([]string, 0, len(presets)+1)
	for _, p := range presets {
		options = append(options, fmt.Sprintf("%s (%d min, %d x %d)", p.Name, p.Duration, p.Sets, p.Reps))
	}
	options = append(options, "Custom workout")

	choice := c.MultiChoice(options, "Which workout?")
	if choice < 0 {
		return
	}

	var in tracker.WorkoutInput
	if choice < len(presets) {
		p := presets[choice]
		in = tracker.WorkoutInput{Name: p.Name, Duration: p.Duration, Reps: p.Reps, Sets: p.Sets}
	} else {
		in.Name = readRequired(c, "Workout name: ", "Name cannot be empty.")
		in.Duration = readPositive(c, "Duration (minutes): ")
		in.Reps = readPositive(c, "Reps: ")
		in.Sets = readPositive(c, "Sets: ")
	}

	if !confirm(c, fmt.Sprintf("Did you complete %s?", in.Name)) {
		return
	}
	d, err := s.app.Tracker.CompleteWorkout(s.ctx, s.email, in)
	if s.fail(err) {
		return
	}
	c.Printf("Workout saved. Streak: %s\n", streakLabel(d.Streak))
}

func (s *session) meditate(c *ishell.Context) {
	presets := tracker.Presets().Meditations
	options := make([]string, 0, len(presets))
	for _, p := range presets {
		options = append(options, fmt.Sprintf("%s (%d min)", p.Name, p.Duration))
	}

	choice := c.MultiChoice(options, "Which meditation?")
	if choice < 0 {
		return
	}
	p := presets[choice]

	if !confirm(c, fmt.Sprintf("Did you complete %s?", p.Name)) {
		return
	}
	d, err := s.app.Tracker.CompleteMeditation(s.ctx, s.email, tracker.MeditationInput{Name: p.Name, Duration: p.Duration, Type: p.Type})
	if s.fail(err) {
		return
	}
	c.Printf("Meditation saved. Streak: %s\n", streakLabel(d.Streak))
}

func (s *session) mood(c *ishell.Context) {
	presets := tracker.Presets().Moods
	options := make([]string, 0, len(presets))
	for _, p := range presets {
		options = append(options, p.Emoji+" "+p.Mood)
	}

	choice := c.MultiChoice(options, "How do you feel?")
	if choice < 0 {
		return
	}
	p := presets[choice]

	d, err := s.app.Tracker.LogMood(s.ctx, s.email, tracker.MoodInput{Mood: p.Mood, Emoji: p.Emoji})
	if s.fail(err) {
		return
	}
	c.Printf("Mood logged. Streak: %s\n", streakLabel(d.Streak))
}

func (s *session) journal(c *ishell.Context) {
	c.Println("Write your entry. End it with a line containing only ';'.")
	text := c.ReadMultiLines(";")
	text = strings.TrimSuffix(strings.TrimSpace(text), ";")

	d, err := s.app.Tracker.SaveJournal(s.ctx, s.email, text)
	if s.fail(err) {
		return
	}
	c.Printf("Journal saved. Streak: %s\n", streakLabel(d.Streak))
}

func (s *session) moods(c *ishell.Context) {
	moods, err := s.app.Tracker.Moods(s.ctx, s.email)
	if s.fail(err) {
		return
	}
	c.Println(renderMoods(moods, s.app.Tracker.Now()))
}

func (s *session) journals(c *ishell.Context) {
	journals, err := s.app.Tracker.Journals(s.ctx, s.email)
	if s.fail(err) {
		return
	}
	c.Println(renderJournals(journals, s.app.Tracker.Now()))
}

func (s *session) sample(c *ishell.Context) {
	d, err := s.app.Tracker.SeedSampleData(s.ctx, s.email)
	if s.fail(err) {
		return
	}
	c.Println("Sample data added.")
	c.Println(renderDashboard(d, s.app.Tracker.Now()))
}

func (s *session) notifications(c *ishell.Context) {
	sched := s.app.Scheduler
	state := sched.State()

	if state.Supported && state.Permission == notify.PermissionUnset {
		perm, err := sched.RequestPermission(s.ctx)
		if err != nil {
			s.printError(err)
			return
		}
		c.Println(permissionMessage(perm))
		return
	}

	outcome, err := sched.Toggle(s.ctx)
	switch {
	case errors.Is(err, reminder.ErrUnsupported):
		c.Println("Notifications are not available with the current NOTIFY_BACKEND.")
	case errors.Is(err, reminder.ErrPermissionDenied):
		c.Println("Notifications are blocked. Clear the saved permission to be asked again.")
	case err != nil:
		s.printError(err)
	default:
		c.Println(toggleMessage(outcome))
	}
}

// addCommands adds the given commands to the shell.
func addCommands(shell *ishell.Shell, commands []Command) {
	for _, command := range commands {
		shell.AddCmd(&ishell.Cmd{
			Name: command.Name,
			Help: command.Desc,
			Func: command.Func,
		})
	}
}

func readRequired(c *ishell.Context, prompt, complaint string) string {
	for {
		value := strings.TrimSpace(ask(c, prompt))
		if value != "" {
			return value
		}
		c.Println(complaint)
	}
}

func readPassword(c *ishell.Context, prompt string) string {
	for {
		c.Print(prompt)
		password := c.ReadPassword()
		if len(password) > 0 {
			return password
		}
		c.Println("Password cannot be empty.")
	}
}

func readPositive(c *ishell.Context, prompt string) int {
	for {
		n, err := strconv.Atoi(strings.TrimSpace(ask(c, prompt)))
		if err == nil && n > 0 {
			return n
		}
		c.Println("Please enter a positive whole number.")
	}
}

func confirm(c *ishell.Context, question string) bool {
	for {
		answer := strings.ToLower(strings.TrimSpace(ask(c, question+" (yes/no): ")))
		switch answer {
		case "y", "yes":
			return true
		case "n", "no":
			return false
		}
		c.Println("Invalid response. Please type 'yes' or 'no'.")
	}
}

func ask(c *ishell.Context, prompt string) string {
	c.Print(prompt)
	return c.ReadLine()
}
