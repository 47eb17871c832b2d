package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/scheduling"
)

func bookAppointmentHandler(svc Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if !decode(w, r, &req) {
			return
		}

		appt, err := svc.BookAppointment(r.Context(), scheduling.BookRequest{
			PatientID: req.PatientID,
			DoctorID:  req.DoctorID,
			Date:      req.Date,
			Time:      req.Time,
			Reason:    req.Reason,
			Status:    req.Status,
		})
		if err != nil {
			handleEngineError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(*appt))
	}
}

func bookByContactHandler(svc Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ContactBookingRequest
		if !decode(w, r, &req) {
			return
		}

		res, err := svc.BookByContact(r.Context(), scheduling.ContactBookRequest{
			Contact:    req.Contact,
			Name:       req.Name,
			Gender:     req.Gender,
			Age:        req.Age,
			BloodGroup: req.BloodGroup,
			DoctorID:   req.DoctorID,
			Date:       req.Date,
			Time:       req.Time,
			Reason:     req.Reason,
		})
		if err != nil {
			handleEngineError(w, err)
			return
		}

		resp := ContactBookingResponse{
			Appointment: toAppointmentResponse(*res.Appointment),
			PatientID:   res.Patient.ID,
			Registered:  res.Registered,
			IssueError:  res.IssueError,
		}
		if res.Credential != nil {
			token := res.Credential.Token.String()
			resp.Credential = &token
		}

		writeJSON(w, http.StatusCreated, resp)
	}
}

// listAppointmentsHandler picks one filter: patient_id, then doctor_id, then
// date, then status. Without any it pages through everything.
func listAppointmentsHandler(svc Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		ctx := r.Context()

		var (
			appts []appointment.Appointment
			err   error
		)
		switch {
		case q.Get("patient_id") != "":
			appts, err = svc.ListAppointmentsForPatient(ctx, q.Get("patient_id"))
		case q.Get("doctor_id") != "":
			appts, err = svc.ListAppointmentsForDoctor(ctx, q.Get("doctor_id"))
		case q.Get("date") != "":
			appts, err = svc.ListAppointmentsByDate(ctx, q.Get("date"))
		case q.Get("status") != "":
			appts, err = svc.ListAppointmentsByStatus(ctx, q.Get("status"))
		default:
			limit, offset, ok := paging(w, r)
			if !ok {
				return
			}
			appts, err = svc.ListAllAppointments(ctx, limit, offset)
		}
		if err != nil {
			handleEngineError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponses(appts))
	}
}

func appointmentStatsHandler(svc Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		counts, err := svc.CountAppointmentsByStatus(r.Context())
		if err != nil {
			handleEngineError(w, err)
			return
		}

		resp := make(map[string]int, len(counts))
		for status, n := range counts {
			resp[string(status)] = n
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getAppointmentHandler(svc Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := svc.GetAppointment(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			handleEngineError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, AppointmentDetailResponse{
			AppointmentResponse:  toAppointmentResponse(d.Appointment),
			PatientName:          d.PatientName,
			PatientAge:           d.PatientAge,
			DoctorName:           d.DoctorName,
			DoctorSpecialization: d.DoctorSpecialization,
		})
	}
}

func updateAppointmentHandler(svc Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UpdateAppointmentRequest
		if !decode(w, r, &req) {
			return
		}

		appt, err := svc.UpdateAppointment(r.Context(), chi.URLParam(r, "id"), scheduling.UpdateRequest{
			Date:     req.Date,
			Time:     req.Time,
			Reason:   req.Reason,
			DoctorID: req.DoctorID,
			Status:   req.Status,
		})
		if err != nil {
			handleEngineError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

func cancelAppointmentHandler(svc Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appt, err := svc.CancelAppointment(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			handleEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

func completeAppointmentHandler(svc Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appt, err := svc.CompleteAppointment(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			handleEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

func deleteAppointmentHandler(svc Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.DeleteAppointment(r.Context(), chi.URLParam(r, "id")); err != nil {
			handleEngineError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func addAvailabilityHandler(svc Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AvailabilityRequest
		if !decode(w, r, &req) {
			return
		}

		slots, err := svc.AddAvailability(r.Context(), scheduling.AvailabilityRequest{
			DoctorID:        chi.URLParam(r, "id"),
			Date:            req.Date,
			DayOfWeek:       req.DayOfWeek,
			Start:           req.Start,
			End:             req.End,
			DurationMinutes: req.DurationMinutes,
		})
		if err != nil {
			handleEngineError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toSlotResponses(slots))
	}
}

// listSlotsHandler serves ?state=free|booked for one date, or pages through
// all of the doctor's slots otherwise.
func listSlotsHandler(svc Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID := chi.URLParam(r, "id")
		date := r.URL.Query().Get("date")

		var (
			slots []availability.Slot
			err   error
		)
		switch state := r.URL.Query().Get("state"); state {
		case "free":
			slots, err = svc.ListFreeSlots(r.Context(), doctorID, date)
		case "booked":
			slots, err = svc.ListBookedSlots(r.Context(), doctorID, date)
		case "":
			limit, offset, ok := paging(w, r)
			if !ok {
				return
			}
			slots, err = svc.ListSlots(r.Context(), doctorID, date, limit, offset)
		default:
			writeError(w, http.StatusBadRequest, "invalid_format", "state must be free or booked")
			return
		}
		if err != nil {
			handleEngineError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toSlotResponses(slots))
	}
}

func deleteDoctorAvailabilityHandler(svc Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		n, err := svc.DeleteDoctorAvailability(r.Context(), chi.URLParam(r, "id"), q.Get("date"), q.Get("start"))
		if err != nil {
			handleEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, DeletedResponse{Deleted: n})
	}
}

func deleteSlotHandler(svc Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.DeleteAvailability(r.Context(), chi.URLParam(r, "id")); err != nil {
			handleEngineError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func bookSlotHandler(svc Scheduler) http.HandlerFunc {
	return slotActionHandler(svc.BookSlot)
}

func freeSlotHandler(svc Scheduler) http.HandlerFunc {
	return slotActionHandler(svc.FreeSlot)
}

type slotAction func(ctx context.Context, slotID, date, start string) (bool, error)

func slotActionHandler(action slotAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SlotActionRequest
		if !decode(w, r, &req) {
			return
		}

		id := chi.URLParam(r, "id")
		changed, err := action(r.Context(), id, req.Date, req.Start)
		if err != nil {
			handleEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, SlotChangeResponse{SlotID: id, Changed: changed})
	}
}

// Helpers

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	return true
}

func paging(w http.ResponseWriter, r *http.Request) (limit, offset int, ok bool) {
	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  *int
	}{{"limit", &limit}, {"offset", &offset}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_format", p.name+" must be an integer")
			return 0, 0, false
		}
		*p.dst = n
	}
	return limit, offset, true
}

var kindStatus = map[scheduling.Kind]struct {
	status int
	code   string
}{
	scheduling.KindInvalidIdentifier: {http.StatusBadRequest, "invalid_identifier"},
	scheduling.KindInvalidFormat:     {http.StatusBadRequest, "invalid_format"},
	scheduling.KindInvalidStatus:     {http.StatusBadRequest, "invalid_status"},
	scheduling.KindNotFound:          {http.StatusNotFound, "not_found"},
	scheduling.KindDuplicateBooking:  {http.StatusConflict, "duplicate_booking"},
	scheduling.KindSlotUnavailable:   {http.StatusConflict, "slot_unavailable"},
	scheduling.KindInvalidTransition: {http.StatusUnprocessableEntity, "invalid_transition"},
	scheduling.KindStoreUnavailable:  {http.StatusServiceUnavailable, "store_unavailable"},
}

func handleEngineError(w http.ResponseWriter, err error) {
	var e *scheduling.Error
	if errors.As(err, &e) {
		if m, ok := kindStatus[e.Kind]; ok {
			writeJSON(w, m.status, ErrorResponse{Error: m.code, Details: err.Error()})
			return
		}
	}
	writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
