package admin

import (
	"fmt"
	"net/http"

	"github.com/evn/cleanops/internal/pkg/response"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const exportSheet = "Shifts"

var exportHeader = []interface{}{"Employee", "Area", "Start", "End", "Worked time", "Worked seconds", "Cleanings"}

// ExportShifts отдаёт XLSX с завершёнными сменами за ?from..?to включительно.
func (h *Handler) ExportShifts(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	from, _, err := dayRange(r.URL.Query().Get("from"), now)
	if err != nil {
		response.RespondWithError(w, http.StatusBadRequest, "Invalid from date")
		return
	}
	_, to, err := dayRange(r.URL.Query().Get("to"), now)
	if err != nil {
		response.RespondWithError(w, http.StatusBadRequest, "Invalid to date")
		return
	}
	if !to.After(from) {
		response.RespondWithError(w, http.StatusBadRequest, "from must not be after to")
		return
	}

	shifts, err := h.shifts.ListEndedShifts(r.Context(), from, to)
	if err != nil {
		h.logger.Error("export query failed", zap.Error(err))
		response.RespondWithError(w, http.StatusInternalServerError, "Database error")
		return
	}

	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(exportSheet)
	if err != nil {
		response.RespondWithError(w, http.StatusInternalServerError, "Failed to build report")
		return
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		h.logger.Warn("failed to drop default sheet", zap.Error(err))
	}

	header := exportHeader
	if err := f.SetSheetRow(exportSheet, "A1", &header); err != nil {
		response.RespondWithError(w, http.StatusInternalServerError, "Failed to build report")
		return
	}
	for i, s := range shifts {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			response.RespondWithError(w, http.StatusInternalServerError, "Failed to build report")
			return
		}
		row := []interface{}{
			s.Username,
			s.AreaName,
			s.StartTime.Format("2006-01-02 15:04"),
			s.EndTime.Format("2006-01-02 15:04"),
			s.WorkedTime,
			s.DurationSeconds,
			s.CleaningCount,
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			response.RespondWithError(w, http.StatusInternalServerError, "Failed to build report")
			return
		}
	}

	filename := fmt.Sprintf("shifts_%s_%s.xlsx", from.Format(dateLayout), to.AddDate(0, 0, -1).Format(dateLayout))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	if err := f.Write(w); err != nil {
		h.logger.Error("failed to write xlsx", zap.Error(err))
	}
}
