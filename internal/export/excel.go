package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/adiselav/CabanApp/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	listSheet      = "Rezervari"
	occupancySheet = "Ocupare"
	dateLayout     = "02.01.2006"
)

var listHeaders = []string{
	"ID", "Utilizator", "Check-in", "Check-out", "Nopti", "Oaspeti", "Camere", "Total (RON)", "Creata",
}

// CabinReservations renders a workbook for one cabin with a reservation list
// sheet and a room by night occupancy grid, and writes it to w.
func CabinReservations(w io.Writer, cabin *models.Cabin, reservations []*models.Reservation) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(listSheet)
	if err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	if err := writeList(f, cabin, reservations); err != nil {
		return err
	}
	if _, err := f.NewSheet(occupancySheet); err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	if err := writeOccupancy(f, cabin, reservations); err != nil {
		return err
	}

	_ = f.DeleteSheet("Sheet1")

	if err := f.Write(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return nil
}

func writeList(f *excelize.File, cabin *models.Cabin, reservations []*models.Reservation) error {
	_ = f.SetCellValue(listSheet, "A1", fmt.Sprintf("%s (%s)", cabin.Name, cabin.Location))
	titleStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}})
	_ = f.SetCellStyle(listSheet, "A1", "A1", titleStyle)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	for i, h := range listHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(listSheet, cell, h)
	}
	last, _ := excelize.CoordinatesToCellName(len(listHeaders), 2)
	_ = f.SetCellStyle(listSheet, "A2", last, headerStyle)

	for i, r := range reservations {
		row := []interface{}{
			r.ID,
			r.UserID,
			r.CheckIn.Time().Format(dateLayout),
			r.CheckOut.Time().Format(dateLayout),
			r.Nights(),
			r.GuestCount,
			roomNumbers(r),
			r.TotalPrice.InexactFloat64(),
			r.CreatedAt.Format("02.01.2006 15:04"),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+3)
		if err := f.SetSheetRow(listSheet, cell, &row); err != nil {
			return fmt.Errorf("error writing row: %w", err)
		}
	}

	_ = f.SetColWidth(listSheet, "A", "B", 12)
	_ = f.SetColWidth(listSheet, "C", "D", 14)
	_ = f.SetColWidth(listSheet, "G", "I", 18)
	return nil
}

// writeOccupancy marks every night a room is held with the reservation ID.
// Columns span the nights from the earliest check-in to the last check-out.
func writeOccupancy(f *excelize.File, cabin *models.Cabin, reservations []*models.Reservation) error {
	_ = f.SetCellValue(occupancySheet, "A1", "Camera")
	if len(reservations) == 0 {
		return nil
	}

	first, end := reservations[0].CheckIn, reservations[0].CheckOut
	for _, r := range reservations[1:] {
		if r.CheckIn.Before(first) {
			first = r.CheckIn
		}
		if r.CheckOut.After(end) {
			end = r.CheckOut
		}
	}

	nights := first.DaysUntil(end)
	for n := 0; n < nights; n++ {
		cell, _ := excelize.CoordinatesToCellName(n+2, 1)
		_ = f.SetCellValue(occupancySheet, cell, first.Time().AddDate(0, 0, n).Format("02.01"))
	}

	rowOf := make(map[int64]int, len(cabin.Rooms))
	for i, room := range cabin.Rooms {
		rowOf[room.ID] = i + 2
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		_ = f.SetCellValue(occupancySheet, cell, fmt.Sprintf("%d (%d loc.)", room.Number, room.Capacity))
	}

	busy, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#F8CBAD"}, Pattern: 1},
	})
	for _, r := range reservations {
		offset := first.DaysUntil(r.CheckIn)
		for _, room := range r.Rooms {
			row, ok := rowOf[room.ID]
			if !ok {
				continue
			}
			for n := 0; n < r.Nights(); n++ {
				cell, _ := excelize.CoordinatesToCellName(offset+n+2, row)
				_ = f.SetCellValue(occupancySheet, cell, r.ID)
				_ = f.SetCellStyle(occupancySheet, cell, cell, busy)
			}
		}
	}

	_ = f.SetColWidth(occupancySheet, "A", "A", 16)
	return nil
}

func roomNumbers(r *models.Reservation) string {
	parts := make([]string, 0, len(r.Rooms))
	for _, room := range r.Rooms {
		parts = append(parts, fmt.Sprint(room.Number))
	}
	return strings.Join(parts, ", ")
}

// FileName is the download name of a cabin workbook generated at t.
func FileName(cabin *models.Cabin, t time.Time) string {
	return fmt.Sprintf("rezervari_cabana_%d_%s.xlsx", cabin.ID, t.Format("2006-01-02"))
}
