package server

import (
	"net/http"

	"github.com/IvanShishkin/buckfinder/internal/server/api"
)

type scanFolderReq struct {
	FolderPath string `json:"folder_path"`
}

type cancelResp struct {
	Cancelled bool `json:"cancelled"`
}

type saveSelectedReq struct {
	OutputFolder string   `json:"output_folder"`
	ImagePaths   []string `json:"image_paths"`
}

type healthResp struct {
	Status string `json:"status"`
	Model  string `json:"model"`
}

func (s *Server) scanFolderAPI(r *http.Request) (any, *api.APIError) {
	var req scanFolderReq
	if apiErr := api.ReadJSON(r, &req); apiErr != nil {
		return nil, apiErr
	}

	folder, apiErr := api.RequirePath(req.FolderPath, "folder_path")
	if apiErr != nil {
		return nil, apiErr
	}

	start, err := s.scanner.StartScan(folder)
	if err != nil {
		return nil, api.FromError(err)
	}
	return start, nil
}

// scanProgressAPI never fails; idle and error states are part of the snapshot
func (s *Server) scanProgressAPI(*http.Request) (any, *api.APIError) {
	return s.scanner.GetProgress(), nil
}

func (s *Server) scanCancelAPI(*http.Request) (any, *api.APIError) {
	return cancelResp{Cancelled: s.scanner.Cancel()}, nil
}

func (s *Server) saveSelectedAPI(r *http.Request) (any, *api.APIError) {
	var req saveSelectedReq
	if apiErr := api.ReadJSON(r, &req); apiErr != nil {
		return nil, apiErr
	}

	dest, apiErr := api.RequirePath(req.OutputFolder, "output_folder")
	if apiErr != nil {
		return nil, apiErr
	}

	result, err := s.saver.Save(dest, req.ImagePaths)
	if err != nil {
		return nil, api.FromError(err)
	}
	return result, nil
}

func (s *Server) healthAPI(*http.Request) (any, *api.APIError) {
	return healthResp{Status: "ok", Model: s.model}, nil
}
