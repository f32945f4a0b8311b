package waypointtour

import (
	"context"
	"testing"

	"github.com/picogrid/swarm-nav/pkg/config"
	"github.com/picogrid/swarm-nav/pkg/events"
	"github.com/picogrid/swarm-nav/pkg/formation"
	"github.com/picogrid/swarm-nav/pkg/geom"
	"github.com/picogrid/swarm-nav/pkg/logger"
	"github.com/picogrid/swarm-nav/pkg/mission"
	"github.com/picogrid/swarm-nav/pkg/simulation"
)

func TestRegistered(t *testing.T) {
	if _, err := simulation.DefaultRegistry.Get(Name); err != nil {
		t.Fatalf("Expected %s to be registered, got %v", Name, err)
	}
}

func TestSquareRoute(t *testing.T) {
	route := SquareRoute(20, 10, 15, 2)
	if len(route) != 4 {
		t.Fatalf("Expected 4 waypoints, got %d", len(route))
	}
	if !route[0].Position.ApproxEqual(geom.V(20, 10, 0), 1e-9) {
		t.Errorf("Expected first corner (20,10,0), got %s", route[0].Position)
	}
	if !route[3].Position.ApproxEqual(geom.V(0, 10, 0), 1e-9) {
		t.Errorf("Expected route to close over the origin, got %s", route[3].Position)
	}
	for i, wp := range route {
		if wp.T1 != 15 || wp.T2 != 2 || wp.Reached {
			t.Errorf("Waypoint %d: expected unreached with T1=15 T2=2, got %+v", i, wp)
		}
	}
}

func TestParseSettings(t *testing.T) {
	tests := []struct {
		name    string
		params  map[string]interface{}
		check   func(Settings) bool
		wantErr bool
	}{
		{
			name:   "defaults",
			params: nil,
			check:  func(s Settings) bool { return s == DefaultSettings() },
		},
		{
			name:   "no formation",
			params: map[string]interface{}{"formation": "none"},
			check:  func(s Settings) bool { return s.Formation == formation.ShapeNone },
		},
		{
			name:   "integer route size",
			params: map[string]interface{}{"route_size": 40},
			check:  func(s Settings) bool { return s.RouteSize == 40 },
		},
		{
			name:    "unknown formation",
			params:  map[string]interface{}{"formation": "circle"},
			wantErr: true,
		},
		{
			name:    "zero t1",
			params:  map[string]interface{}{"t1": 0.0},
			wantErr: true,
		},
		{
			name:    "wrong type",
			params:  map[string]interface{}{"t2": "long"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSettings(tt.params)
			if tt.wantErr {
				if err == nil {
					t.Error("Expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if !tt.check(got) {
				t.Errorf("Unexpected settings %+v", got)
			}
		})
	}
}

func TestCompleted(t *testing.T) {
	wps := SquareRoute(10, 10, 5, 1)
	tests := []struct {
		name string
		tel  mission.Telemetry
		want int
	}{
		{name: "not started", tel: mission.Telemetry{CurrentWaypoint: -1, Phase: mission.PhaseAirborne.String()}, want: 0},
		{name: "second waypoint", tel: mission.Telemetry{CurrentWaypoint: 1, Waypoints: wps, Phase: mission.PhaseTouring.String()}, want: 1},
		{name: "final approach", tel: mission.Telemetry{CurrentWaypoint: -1, Waypoints: wps, Phase: mission.PhaseFinalApproach.String()}, want: 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Completed(tt.tel); got != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestConfigureKeepsConfiguredWaypoints(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Navigation.Waypoints = []mission.Waypoint{mission.NewWaypoint(geom.V(5, 10, 5), 10, 1)}

	if err := New().Configure(cfg, nil); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	if len(cfg.Navigation.Waypoints) != 1 {
		t.Errorf("Expected the configured waypoint to be kept, got %d waypoints", len(cfg.Navigation.Waypoints))
	}
}

func TestRunTourAndLand(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Logging.EnableAAR = false

	sim := New()
	err := sim.Configure(cfg, map[string]interface{}{
		"agent_count": 2,
		"formation":   "none",
		"route_size":  10.0,
		"t1":          15.0,
		"t2":          1.0,
		"time_scale":  100.0,
		"packet_loss": 0.0,
		"corruption":  0.0,
	})
	if err != nil {
		t.Fatalf("Configure failed: %v", err)
	}

	recorder := events.NewRecorder()
	rt := &simulation.Runtime{Config: cfg, Log: logger.Nop(), Recorder: recorder}
	if err := sim.Run(context.Background(), rt); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	finished := len(recorder.OfKind(events.KindWaypointReached)) + len(recorder.OfKind(events.KindTimingViolation))
	if finished != 4 {
		t.Errorf("Expected 4 finished waypoints, got %d", finished)
	}
	if n := len(recorder.OfKind(events.KindMissionComplete)); n != 1 {
		t.Errorf("Expected 1 mission complete event, got %d", n)
	}
}
