package main

import (
	"context"
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hackgods/clinic-scheduling/internal/app"
	"github.com/hackgods/clinic-scheduling/internal/calendar"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/logging"
	"github.com/hackgods/clinic-scheduling/internal/registry"
	"github.com/hackgods/clinic-scheduling/internal/scheduling"
)

var specialties = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

type seedOptions struct {
	doctors  int
	patients int
	days     int
}

func main() {
	var opts seedOptions

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill the database with fake departments, doctors, patients and availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}
	cmd.Flags().IntVar(&opts.doctors, "doctors", 20, "number of doctors")
	cmd.Flags().IntVar(&opts.patients, "patients", 500, "number of patients")
	cmd.Flags().IntVar(&opts.days, "days", 7, "days of availability to publish, starting tomorrow")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, opts seedOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Env, cfg.LogLevel)
	logger.Info().Msg("seed starting")

	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	gofakeit.Seed(time.Now().UnixNano())

	depts, err := seedDepartments(ctx, a)
	if err != nil {
		return err
	}
	doctors, err := seedDoctors(ctx, a, depts, opts.doctors, logger)
	if err != nil {
		return err
	}
	if err := seedPatients(ctx, a, opts.patients, logger); err != nil {
		return err
	}
	if err := seedAvailability(ctx, a.Engine, doctors, opts.days, logger); err != nil {
		return err
	}

	logger.Info().Msg("seed complete")
	return nil
}

// seedDepartments creates one department per specialty, keyed by name.
func seedDepartments(ctx context.Context, a *app.App) (map[string]string, error) {
	ids := make(map[string]string, len(specialties))
	for _, name := range specialties {
		d := registry.Department{Name: name}
		if err := a.Departments.Insert(ctx, &d); err != nil {
			return nil, err
		}
		ids[name] = d.ID
	}
	return ids, nil
}

func seedDoctors(ctx context.Context, a *app.App, depts map[string]string, count int, logger zerolog.Logger) ([]string, error) {
	logger.Info().Int("count", count).Msg("seeding doctors")

	ids := make([]string, 0, count)
	for range count {
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]
		deptID := depts[spec]

		d := registry.Doctor{
			Name:            "Dr. " + gofakeit.Name(),
			Gender:          registry.Genders[gofakeit.Number(0, 1)],
			Specialization:  spec,
			Experience:      gofakeit.Number(1, 35),
			Contact:         gofakeit.Phone(),
			Email:           gofakeit.Email(),
			ConsultationFee: float64(gofakeit.Number(30, 250)),
			DeptID:          &deptID,
		}
		err := a.Doctors.Insert(ctx, &d)
		if errors.Is(err, registry.ErrContactTaken) {
			continue
		}
		if err != nil {
			return nil, err
		}
		ids = append(ids, d.ID)
	}

	logger.Info().Int("created", len(ids)).Msg("doctors seeded")
	return ids, nil
}

func seedPatients(ctx context.Context, a *app.App, count int, logger zerolog.Logger) error {
	logger.Info().Int("count", count).Msg("seeding patients")

	created := 0
	for i := range count {
		p, err := registry.NewPatient(
			gofakeit.Name(),
			registry.Genders[gofakeit.Number(0, len(registry.Genders)-1)],
			strconv.Itoa(gofakeit.Number(1, 90)),
			registry.BloodGroups[gofakeit.Number(0, len(registry.BloodGroups)-1)],
			gofakeit.Phone(),
		)
		if err != nil {
			return err
		}

		err = a.Patients.Insert(ctx, &p)
		if errors.Is(err, registry.ErrContactTaken) {
			continue
		}
		if err != nil {
			return err
		}
		created++

		if (i+1)%100 == 0 {
			logger.Info().Int("done", i+1).Int("total", count).Msg("patients progress")
		}
	}

	logger.Info().Int("created", created).Msg("patients seeded")
	return nil
}

// seedAvailability publishes a 09:00-13:00 morning of 30 minute slots for
// every doctor on each weekday in the window.
func seedAvailability(ctx context.Context, engine *scheduling.Engine, doctors []string, days int, logger zerolog.Logger) error {
	today := time.Now().UTC().Truncate(24 * time.Hour)

	total := 0
	for d := 1; d <= days; d++ {
		day := today.AddDate(0, 0, d)
		if day.Weekday() == time.Sunday {
			continue
		}
		for _, doctorID := range doctors {
			slots, err := engine.AddAvailability(ctx, scheduling.AvailabilityRequest{
				DoctorID:        doctorID,
				Date:            calendar.FormatDate(day),
				DayOfWeek:       day.Weekday().String(),
				Start:           "09:00",
				End:             "13:00",
				DurationMinutes: 30,
			})
			if err != nil {
				return err
			}
			total += len(slots)
		}
	}

	logger.Info().Int("slots", total).Msg("availability seeded")
	return nil
}
