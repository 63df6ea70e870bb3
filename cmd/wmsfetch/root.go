package main

import (
	"context"
	"errors"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/wmsgate/internal/core/capabilities"
	"github.com/mohammed-shakir/wmsgate/internal/core/crs"
	"github.com/mohammed-shakir/wmsgate/internal/core/executor"
	"github.com/mohammed-shakir/wmsgate/internal/core/httpclient"
	"github.com/mohammed-shakir/wmsgate/internal/core/model"
	"github.com/mohammed-shakir/wmsgate/internal/core/ogc"
	"github.com/mohammed-shakir/wmsgate/internal/logger"
	"github.com/mohammed-shakir/wmsgate/internal/render"
)

type options struct {
	serviceURL string
	version    string
	layers     []string
	styles     []string
	bbox       string
	srs        string
	width      int
	height     int
	format     string
	opacity    float32
	forceURL   string
	username   string
	password   string
	timeout    time.Duration
	out        string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:           "wmsfetch",
		Short:         "Render a map from a WMS service",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.render(cmd.Context(), cmd.OutOrStdout())
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&o.serviceURL, "service-url", "", "WMS service URL (required)")
	pf.StringVar(&o.version, "version", "", "WMS version to speak, defaults to the advertised one")
	pf.StringVar(&o.username, "user", "", "basic auth user")
	pf.StringVar(&o.password, "password", "", "basic auth password")
	pf.DurationVar(&o.timeout, "timeout", executor.DefaultTimeout, "idle timeout between received chunks")
	pf.StringVar(&o.logLevel, "log-level", "warn", "log level")
	_ = root.MarkPersistentFlagRequired("service-url")

	addMapFlags(root, o)
	root.Flags().StringVarP(&o.out, "out", "o", "map.png", "output PNG file, - for stdout")

	root.AddCommand(newLayersCmd(o), newURLCmd(o), newInvalidateCmd(o))
	return root
}

func addMapFlags(cmd *cobra.Command, o *options) {
	f := cmd.Flags()
	f.StringSliceVarP(&o.layers, "layers", "l", nil, "layers to draw, bottom first")
	f.StringSliceVar(&o.styles, "styles", nil, "styles, one per layer")
	f.StringVar(&o.bbox, "bbox", "", "minx,miny,maxx,maxy in srs units")
	f.StringVar(&o.srs, "srs", crs.Code(crs.WGS84), "spatial reference of bbox")
	f.IntVar(&o.width, "width", 800, "image width")
	f.IntVar(&o.height, "height", 600, "image height")
	f.StringVar(&o.format, "format", "", "image format requested from the service")
	f.Float32Var(&o.opacity, "opacity", 1, "layer opacity within 0 and 1")
	f.StringVar(&o.forceURL, "force-url", "", "send GetMap to this endpoint instead of the advertised one")
}

func newLayersCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "layers",
		Short: "List the layer tree the service advertises",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := o.registry().Get(cmd.Context(), o.serviceURL)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s (WMS %s) formats: %s\n", svc.Title, svc.Version, strings.Join(svc.GetMap.Formats, ", "))
			svc.Layers.Walk(func(l capabilities.Layer, depth int) bool {
				name := l.Name
				if name == "" {
					name = "-"
				}
				line := strings.Repeat("  ", depth) + name
				if l.Title != "" {
					line += "  " + l.Title
				}
				if l.Queryable {
					line += "  [queryable]"
				}
				if len(l.Styles) > 0 {
					line += "  styles=" + strings.Join(l.Styles, ",")
				}
				fmt.Fprintln(w, line)
				return true
			})
			return nil
		},
	}
}

func newURLCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "url",
		Short: "Print the GetMap URL without fetching it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			l, vp, err := o.layer(cmd.Context())
			if err != nil {
				return err
			}
			u, err := l.RequestURL(vp)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), u)
			return nil
		},
	}
	addMapFlags(cmd, o)
	return cmd
}

func (o *options) logger() *slog.Logger {
	zl := logger.Build(logger.Config{Level: o.logLevel, Console: true, Component: "wmsfetch"}, os.Stderr)
	return logger.NewSlog(&zl)
}

func (o *options) registry() *capabilities.Registry {
	return capabilities.NewRegistry(capabilities.HTTPLoader{
		Client:    httpclient.NewOutbound(httpclient.WithTimeout(o.timeout)),
		Version:   o.version,
		UserAgent: executor.DefaultUserAgent,
	}, capabilities.WithLogger(o.logger()))
}

func (o *options) viewport() (model.Viewport, int, error) {
	srid, err := crs.Parse(o.srs)
	if err != nil {
		return model.Viewport{}, 0, err
	}
	if o.bbox == "" {
		return model.Viewport{}, 0, errors.New("--bbox is required")
	}
	bb, err := ogc.ParseBBOX(o.bbox, false)
	if err != nil {
		return model.Viewport{}, 0, fmt.Errorf("bbox: %w", err)
	}
	if bb.IsEmpty() {
		return model.Viewport{}, 0, errors.New("bbox has no area")
	}
	if o.width <= 0 || o.height <= 0 {
		return model.Viewport{}, 0, errors.New("width and height must be positive")
	}
	bb.SRID = srid
	return model.Viewport{BBox: bb, Size: model.Size{Width: o.width, Height: o.height}}, srid, nil
}

// layer attaches to the service and applies the map flags.
func (o *options) layer(ctx context.Context) (*render.Layer, model.Viewport, error) {
	vp, srid, err := o.viewport()
	if err != nil {
		return nil, vp, err
	}
	if len(o.layers) == 0 {
		return nil, vp, errors.New("--layers is required")
	}

	eo := executor.DefaultOptions()
	eo.Timeout = o.timeout
	if o.username != "" {
		eo.Credentials = &executor.Credentials{Username: o.username, Password: o.password}
	}
	log := o.logger()
	lo := render.DefaultLayerOptions()
	lo.Version = o.version
	lo.SRID = srid
	lo.ContinueOnError = false
	lo.Logger = log

	l, err := render.NewLayer(ctx, "wmsfetch", o.serviceURL, o.registry(), executor.New(log, nil, eo), lo)
	if err != nil {
		return nil, vp, err
	}
	for _, name := range o.layers {
		if err := l.AddLayer(name); err != nil {
			return nil, vp, err
		}
	}
	for _, s := range o.styles {
		if err := l.AddStyle(s); err != nil {
			return nil, vp, err
		}
	}
	if o.format != "" {
		if err := l.SetImageFormat(o.format); err != nil {
			return nil, vp, err
		}
	}
	if o.opacity != 1 {
		if err := l.SetOpacity(o.opacity); err != nil {
			return nil, vp, err
		}
	}
	if o.forceURL != "" {
		l.ForceOnlineResourceURL(o.forceURL)
	}
	return l, vp, nil
}

func (o *options) render(ctx context.Context, stdout io.Writer) error {
	l, vp, err := o.layer(ctx)
	if err != nil {
		return err
	}
	m := render.Map{Layers: []*render.Layer{l}}
	img, err := m.Render(ctx, vp)
	if err != nil {
		return err
	}

	if o.out == "-" {
		return png.Encode(stdout, img)
	}
	f, err := os.Create(o.out)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode %s: %w", o.out, err)
	}
	return f.Close()
}
