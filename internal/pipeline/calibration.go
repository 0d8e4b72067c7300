// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package pipeline

import (
	"github.com/skywatch/luckystack/internal/config"
	"github.com/skywatch/luckystack/internal/registration"
)

// loadCalibration reads the optional master dark/flat frames named in cfg
// and precomputes flat_mean, per spec.md §3.
func loadCalibration(cfg *config.Config, w, h int) (registration.Calibration, error) {
	var cal registration.Calibration
	if cfg.MasterDark != "" {
		dark, err := loadFrame(cfg.MasterDark, w, h)
		if err != nil {
			return cal, err
		}
		cal.MasterDark = dark
	}
	if cfg.MasterFlat != "" {
		flat, err := loadFrame(cfg.MasterFlat, w, h)
		if err != nil {
			return cal, err
		}
		cal.MasterFlat = flat
		var sum float64
		for _, v := range flat.Data {
			sum += float64(v)
		}
		cal.FlatMean = float32(sum / float64(len(flat.Data)))
	}
	cal.Pedestal = cfg.Pedestal
	return cal, nil
}
