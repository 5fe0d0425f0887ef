package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/xuri/excelize/v2"
)

const (
	sheetProfile    = "Profile"
	sheetBiometrics = "Biometrics"
	sheetSessions   = "Sessions"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type exportStyles struct {
	header int
	date   int
	number int
}

func createExportStyles(f *excelize.File) (exportStyles, error) {
	var s exportStyles
	var err error
	border := []excelize.Border{
		{Type: "left", Color: "#D9D9D9", Style: 1},
		{Type: "right", Color: "#D9D9D9", Style: 1},
		{Type: "top", Color: "#D9D9D9", Style: 1},
		{Type: "bottom", Color: "#D9D9D9", Style: 1},
	}

	s.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#2E75B6"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    border,
	})
	if err != nil {
		return s, fmt.Errorf("header style: %w", err)
	}

	dateFmt := "yyyy-mm-dd hh:mm"
	s.date, err = f.NewStyle(&excelize.Style{
		Font:         &excelize.Font{Size: 10},
		CustomNumFmt: &dateFmt,
		Border:       border,
	})
	if err != nil {
		return s, fmt.Errorf("date style: %w", err)
	}

	s.number, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Size: 10},
		NumFmt:    2, // 0.00
		Alignment: &excelize.Alignment{Horizontal: "center"},
		Border:    border,
	})
	if err != nil {
		return s, fmt.Errorf("number style: %w", err)
	}
	return s, nil
}

// writeHeader writes a styled header row and column widths on sheet.
func writeHeader(f *excelize.File, sheet string, style int, headers []string, width float64) error {
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	last, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last+"1", style); err != nil {
		return err
	}
	return f.SetColWidth(sheet, "A", last, width)
}

// setRow writes values starting at column A of row.
func setRow(f *excelize.File, sheet string, row int, values ...any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

// deref renders nil pointers as empty cells.
func deref[T any](v *T) any {
	if v == nil {
		return ""
	}
	return *v
}

// buildAthleteWorkbook renders an athlete's details into a three-sheet workbook.
func buildAthleteWorkbook(d athleteDetails, generatedAt time.Time) (*excelize.File, error) {
	f := excelize.NewFile()
	styles, err := createExportStyles(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	if err := f.SetSheetName("Sheet1", sheetProfile); err != nil {
		f.Close()
		return nil, err
	}
	for _, name := range []string{sheetBiometrics, sheetSessions} {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	if err := writeProfileSheet(f, styles, d, generatedAt); err != nil {
		f.Close()
		return nil, fmt.Errorf("profile sheet: %w", err)
	}
	if err := writeBiometricsSheet(f, styles, d.Biometrics); err != nil {
		f.Close()
		return nil, fmt.Errorf("biometrics sheet: %w", err)
	}
	if err := writeSessionsSheet(f, styles, d.RecentSessions); err != nil {
		f.Close()
		return nil, fmt.Errorf("sessions sheet: %w", err)
	}
	f.SetActiveSheet(0)
	return f, nil
}

func writeProfileSheet(f *excelize.File, st exportStyles, d athleteDetails, generatedAt time.Time) error {
	if err := writeHeader(f, sheetProfile, st.header, []string{"Field", "Value"}, 24); err != nil {
		return err
	}
	rows := [][2]any{
		{"Name", d.User.FullName},
		{"Email", d.User.Email},
		{"Exported at", generatedAt.Format(time.RFC3339)},
	}
	if p := d.Profile; p != nil {
		rows = append(rows,
			[2]any{"Age", deref(p.Age)},
			[2]any{"Height (m)", deref(p.HeightM)},
			[2]any{"Weight (kg)", deref(p.WeightKG)},
			[2]any{"Sex", deref(p.Sex)},
			[2]any{"Activity level", deref(p.ActivityLevel)},
			[2]any{"Goal", deref(p.Goal)},
			[2]any{"Allergies", deref(p.Allergies)},
			[2]any{"Dietary preferences", deref(p.DietaryPreferences)},
		)
	}
	for i, r := range rows {
		if err := setRow(f, sheetProfile, i+2, r[0], r[1]); err != nil {
			return err
		}
	}
	return nil
}

func writeBiometricsSheet(f *excelize.File, st exportStyles, entries []biometricMeasurement) error {
	headers := []string{"Measured at", "Weight (kg)", "Body fat (%)", "Waist (cm)"}
	if err := writeHeader(f, sheetBiometrics, st.header, headers, 18); err != nil {
		return err
	}
	for i, m := range entries {
		row := i + 2
		if err := setRow(f, sheetBiometrics, row, m.MeasuredAt, m.WeightKG, deref(m.BodyFatPercent), deref(m.WaistCM)); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheetBiometrics, fmt.Sprintf("A%d", row), fmt.Sprintf("A%d", row), st.date); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheetBiometrics, fmt.Sprintf("B%d", row), fmt.Sprintf("D%d", row), st.number); err != nil {
			return err
		}
	}
	return nil
}

func writeSessionsSheet(f *excelize.File, st exportStyles, sessions []trainingSessionRow) error {
	headers := []string{"Completed at", "Programme", "Session", "Duration (min)", "Exercises", "Sets", "Notes"}
	if err := writeHeader(f, sheetSessions, st.header, headers, 18); err != nil {
		return err
	}
	for i, s := range sessions {
		row := i + 2
		if err := setRow(f, sheetSessions, row,
			s.CompletedAt, s.ProgrammeTitle, s.SessionName, s.DurationMinutes,
			s.ExerciseCount, s.TotalSets, deref(s.Notes)); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheetSessions, fmt.Sprintf("A%d", row), fmt.Sprintf("A%d", row), st.date); err != nil {
			return err
		}
	}
	return nil
}

// exportAthlete streams the athlete's details as an xlsx workbook.
// GET /api/coach/athletes/:id/export.
func (h *Handler) exportAthlete(c *gin.Context) {
	id, ok := athleteIDParam(c)
	if !ok {
		return
	}

	d, err := h.loadAthleteDetails(c, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			apiError(c, http.StatusNotFound, "athlete not found")
		} else {
			apiError(c, http.StatusInternalServerError, "failed to fetch athlete")
		}
		return
	}

	f, err := buildAthleteWorkbook(d, time.Now())
	if err != nil {
		log.Printf("[exportAthlete] build workbook: %v", err)
		apiError(c, http.StatusInternalServerError, "failed to build export")
		return
	}
	defer f.Close()

	buf, err := f.WriteToBuffer()
	if err != nil {
		log.Printf("[exportAthlete] write workbook: %v", err)
		apiError(c, http.StatusInternalServerError, "failed to build export")
		return
	}

	filename := fmt.Sprintf("athlete-%d-%s.xlsx", id, time.Now().Format("20060102"))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
