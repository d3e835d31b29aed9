package main

import (
	"errors"
	"fmt"

	"github.com/1F47E/qr-navigator/pkg/camera"
	"github.com/1F47E/qr-navigator/pkg/config"
	"github.com/1F47E/qr-navigator/pkg/decoder"
	"github.com/1F47E/qr-navigator/pkg/models"
	"github.com/1F47E/qr-navigator/pkg/navmesh"
	"github.com/spf13/cobra"
)

var (
	pathMesh string
	pathFrom string
	pathTo   string
	pathMask string
)

var pathCmd = &cobra.Command{
	Use:   "path",
	Short: "Compute the walkable path between two points on a mesh",
	RunE:  runPath,
}

var decodeCmd = &cobra.Command{
	Use:   "decode <image>...",
	Short: "Decode QR codes from image files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDecode,
}

func init() {
	pathCmd.Flags().StringVarP(&pathMesh, "mesh", "m", "", "Mesh file, YAML or .gob (overrides navigation.mesh)")
	pathCmd.Flags().StringVar(&pathFrom, "from", "0,0,0", "Start point x,y,z")
	pathCmd.Flags().StringVar(&pathTo, "to", "", "End point x,y,z")
	pathCmd.Flags().StringVar(&pathMask, "mask", "", "Area mask (overrides navigation.area_mask)")
	_ = pathCmd.MarkFlagRequired("to")
}

func runPath(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	file := firstSet(pathMesh, cfg.Navigation.Mesh)
	if file == "" {
		return errors.New("no mesh: pass --mesh or set navigation.mesh")
	}
	mask := cfg.Navigation.AreaMask
	if pathMask != "" {
		if mask, err = config.ParseAreaMask(pathMask); err != nil {
			return fmt.Errorf("invalid --mask: %w", err)
		}
	}
	from, err := models.ParseVec3(pathFrom)
	if err != nil {
		return err
	}
	to, err := models.ParseVec3(pathTo)
	if err != nil {
		return err
	}

	mesh, err := navmesh.Load(file)
	if err != nil {
		return err
	}
	corners, err := mesh.FindPath(from, to, mask)
	if err != nil {
		return err
	}

	for i, c := range corners {
		fmt.Printf("%d. %s\n", i+1, c)
	}
	return nil
}

func runDecode(cmd *cobra.Command, args []string) error {
	d := decoder.NewQRDecoder(decoder.DefaultOptions())
	misses := 0
	for _, file := range args {
		img, err := camera.LoadImage(file)
		if err != nil {
			return err
		}
		text, ok := d.Decode(img)
		if !ok {
			misses++
			fmt.Printf("%s: no code found\n", file)
			continue
		}
		fmt.Printf("%s: %s\n", file, text)
	}
	if misses == len(args) {
		return errors.New("no codes decoded")
	}
	return nil
}
