package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"

	"github.com/yigit/placement/internal/app/models"
	"github.com/yigit/placement/internal/app/models/dto"
	"github.com/yigit/placement/internal/app/notify"
	"github.com/yigit/placement/internal/app/repositories"
	"github.com/yigit/placement/internal/app/services"
	"github.com/yigit/placement/internal/config"
	"github.com/yigit/placement/internal/db"
	"github.com/yigit/placement/internal/pkg/auth"
	"github.com/yigit/placement/internal/pkg/helpers"
	"github.com/yigit/placement/internal/pkg/logger"
)

// env is the wiring shared by every database command
type env struct {
	cfg        *config.Config
	database   *db.PostgresDB
	services   *services.Services
	dispatcher *notify.Dispatcher
	amqp       *notify.AMQPSink
	caller     models.Caller
}

func (e *env) close(ctx context.Context) {
	if err := e.dispatcher.Stop(ctx); err != nil {
		color.Yellow("Warning: notifications still queued at exit: %v", err)
	}
	if e.amqp != nil {
		_ = e.amqp.Close()
	}
	e.database.Close()
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}
	logger.Configure(logger.Config{
		Level:   logger.LogLevel(strings.ToLower(cfg.Logging.Level)),
		Pretty:  true,
		Output:  os.Stderr,
		Service: "placementctl",
	})
	return cfg, nil
}

func openEnv(c *cli.Context) (*env, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}

	database, err := db.NewPostgresDB(cfg)
	if err != nil {
		return nil, err
	}

	lgr := logger.Get()
	sinks := []notify.Sink{notify.NewLogSink(lgr)}
	var amqpSink *notify.AMQPSink
	if cfg.AMQP.Enabled {
		if amqpSink, err = notify.NewAMQPSink(cfg.AMQP.URL, cfg.AMQP.Queue); err != nil {
			lgr.Warn().Err(err).Msg("AMQP unavailable; notifications are only logged")
		} else {
			sinks = append(sinks, amqpSink)
		}
	}
	dispatcher := notify.NewDispatcher(notify.Config{
		Workers:      1,
		QueueSize:    cfg.Notifications.QueueSize,
		MaxAttempts:  cfg.Notifications.MaxAttempts,
		RetryBackoff: helpers.ParseDuration(cfg.Notifications.RetryBackoff, 500*time.Millisecond),
	}, logger.Component("notify"), sinks...)
	dispatcher.Start(c.Context)

	svc := services.NewServices(repositories.NewRepositories(database.Pool), dispatcher, services.Options{
		WithdrawWindow:     helpers.ParseDuration(cfg.Applications.WithdrawWindow, 24*time.Hour),
		EnforceEligibility: cfg.Applications.EnforceEligibility,
		Clock:              helpers.SystemClock,
		Logger:             lgr,
	})

	return &env{
		cfg:        cfg,
		database:   database,
		services:   svc,
		dispatcher: dispatcher,
		amqp:       amqpSink,
		caller:     models.Caller{UserID: c.String("actor"), Role: models.RoleAdmin},
	}, nil
}

// withEnv opens the database for the duration of fn
func withEnv(fn func(c *cli.Context, e *env) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		e, err := openEnv(c)
		if err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			e.close(ctx)
		}()
		return fn(c, e)
	}
}

func sweepCommand() *cli.Command {
	return &cli.Command{
		Name:  "sweep",
		Usage: "lift every time-bounded freeze that has ended",
		Action: withEnv(func(c *cli.Context, e *env) error {
			n, err := e.services.FreezeService.SweepExpired(c.Context, time.Now().UTC())
			if err != nil {
				return err
			}
			if n == 0 {
				color.Cyan("No expired freezes")
				return nil
			}
			color.Green("Unfroze %d student(s)", n)
			return nil
		}),
	}
}

func freezeCommand() *cli.Command {
	return &cli.Command{
		Name:      "freeze",
		Usage:     "freeze student accounts",
		ArgsUsage: "STUDENT_ID...",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "reason", Aliases: []string{"r"}, Required: true},
			&cli.StringFlag{Name: "category"},
			&cli.StringFlag{Name: "notes"},
			&cli.StringFlag{Name: "until", Usage: "RFC3339 time or a duration such as 72h; empty freezes indefinitely"},
		},
		Action: withEnv(func(c *cli.Context, e *env) error {
			until, err := parseUntil(c.String("until"), time.Now().UTC())
			if err != nil {
				return err
			}
			return runBulk(c, e, dto.BulkFreezeRequest{
				StudentIDs: c.Args().Slice(),
				Action:     string(models.FreezeActionFreeze),
				Reason:     c.String("reason"),
				Category:   c.String("category"),
				Notes:      c.String("notes"),
				Until:      until,
			})
		}),
	}
}

func unfreezeCommand() *cli.Command {
	return &cli.Command{
		Name:      "unfreeze",
		Usage:     "unfreeze student accounts",
		ArgsUsage: "STUDENT_ID...",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "reason", Aliases: []string{"r"}},
		},
		Action: withEnv(func(c *cli.Context, e *env) error {
			return runBulk(c, e, dto.BulkFreezeRequest{
				StudentIDs: c.Args().Slice(),
				Action:     string(models.FreezeActionUnfreeze),
				Reason:     c.String("reason"),
			})
		}),
	}
}

func runBulk(c *cli.Context, e *env, req dto.BulkFreezeRequest) error {
	if len(req.StudentIDs) == 0 {
		return cli.Exit("at least one STUDENT_ID is required", 2)
	}
	resp, err := e.services.FreezeService.BulkFreeze(c.Context, e.caller, req)
	if err != nil {
		return err
	}
	renderBulk(c.App.Writer, resp)
	if resp.Summary.Failed > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d failed", resp.Summary.Failed, resp.Summary.Total), 1)
	}
	return nil
}

func studentsCommand() *cli.Command {
	return &cli.Command{
		Name:  "students",
		Usage: "list students",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "frozen", Usage: "only frozen students"},
			&cli.StringFlag{Name: "batch"},
			&cli.IntFlag{Name: "limit", Value: 50},
		},
		Action: withEnv(func(c *cli.Context, e *env) error {
			filter := repositories.StudentFilter{FrozenOnly: c.Bool("frozen"), Batch: c.String("batch")}
			students, total, err := e.services.StudentService.List(c.Context, filter, 0, uint64(c.Int("limit")))
			if err != nil {
				return err
			}
			renderStudents(c.App.Writer, students)
			color.Cyan("%d of %d student(s)", len(students), total)
			return nil
		}),
	}
}

func eligibilityCommand() *cli.Command {
	return &cli.Command{
		Name:  "eligibility",
		Usage: "check a student against a job's criteria",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "roll", Required: true, Usage: "student roll number"},
			&cli.StringFlag{Name: "job", Required: true, Usage: "job id"},
		},
		Action: withEnv(func(c *cli.Context, e *env) error {
			resp, err := e.services.JobService.EligibilityByRollNumber(c.Context, c.String("roll"), c.String("job"))
			if err != nil {
				return err
			}
			renderEligibility(c.App.Writer, c.String("roll"), resp)
			return nil
		}),
	}
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "sign an access token for local testing",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "uid", Required: true},
			&cli.StringFlag{Name: "role", Value: auth.RoleStudent},
			&cli.StringFlag{Name: "roll"},
			&cli.StringFlag{Name: "email"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			jwtService := auth.NewJWTService(auth.JWTConfig{
				SecretKey:      cfg.JWT.Secret,
				AccessTokenExp: helpers.ParseDuration(cfg.JWT.AccessTokenExpiration, time.Hour),
				TokenIssuer:    cfg.JWT.Issuer,
			})
			token, err := jwtService.GenerateAccessToken(c.String("uid"), c.String("email"), c.String("role"), c.String("roll"))
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, token)
			return nil
		},
	}
}

// parseUntil accepts an RFC3339 timestamp or a duration from now
func parseUntil(value string, now time.Time) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return nil, fmt.Errorf("invalid --until %q: want RFC3339 or a positive duration", value)
	}
	t := now.Add(d)
	return &t, nil
}

func renderBulk(w io.Writer, resp *dto.BulkFreezeResponse) {
	ok := color.New(color.FgGreen).SprintFunc()
	bad := color.New(color.FgRed).SprintFunc()

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Student", "Result", "Message"})
	for _, r := range resp.Results {
		status := ok(r.Status)
		if r.Status != dto.ResultSuccess {
			status = bad(r.Status)
		}
		table.Append([]string{r.StudentID, status, r.Message})
	}
	table.SetFooter([]string{"", fmt.Sprintf("%d ok", resp.Summary.Successful), fmt.Sprintf("%d failed", resp.Summary.Failed)})
	table.Render()
}

func renderStudents(w io.Writer, students []*models.Student) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Roll", "Name", "Batch", "CGPA", "Placement", "Frozen", "Until"})
	for _, s := range students {
		resp := dto.NewStudentResponse(s)
		frozen, until := "no", ""
		if resp.Frozen {
			frozen = "yes: " + resp.FrozenReason
			until = "indefinite"
			if resp.FrozenUntil != nil {
				until = resp.FrozenUntil.Format(time.RFC3339)
			}
		}
		table.Append([]string{
			resp.ID,
			resp.RollNumber,
			resp.Name,
			resp.Batch,
			strconv.FormatFloat(resp.CGPA, 'f', 2, 64),
			string(resp.PlacementStatus),
			frozen,
			until,
		})
	}
	table.Render()
}

func renderEligibility(w io.Writer, roll string, resp *dto.EligibilityResponse) {
	if resp.Eligible {
		color.New(color.FgGreen).Fprintf(w, "%s is eligible for %s\n", roll, resp.JobID)
		return
	}
	color.New(color.FgRed).Fprintf(w, "%s is not eligible for %s\n", roll, resp.JobID)
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "Reason"})
	for i, r := range resp.Reasons {
		table.Append([]string{strconv.Itoa(i + 1), r})
	}
	table.Render()
}
